package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/docvault/internal/docvault/fanout"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
	"github.com/bitfantasy/docvault/internal/docvault/service"
	"github.com/bitfantasy/docvault/internal/docvault/sse"
	"github.com/bitfantasy/docvault/internal/docvault/storage"
	"github.com/bitfantasy/docvault/internal/docvault/testutil"
)

// testBlobStore 内存对象存储
type testBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *testBlobStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *testBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *testBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *testBlobStore) Stat(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return int64(len(data)), nil
}

func setupDocumentTest(t *testing.T) *gin.Engine {
	t.Helper()
	db := testutil.SetupTestDB(t)

	blob := &testBlobStore{objects: map[string][]byte{}}
	hub := sse.NewHub(nil)
	fan := fanout.New(fanout.NewGormAuditor(db), fanout.NewSSEBroadcaster(hub, nil), nil, nil)

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, blob, fan, service.Options{
		UploadTmpDir: t.TempDir(),
	}, nil)
	handlers := NewHandlers(services, hub)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")

	docs := api.Group("/documents")
	docs.POST("", handlers.Document.Create)
	docs.GET("", handlers.Document.List)
	docs.GET("/:id", handlers.Document.Get)
	docs.PATCH("/:id", handlers.Document.UpdateMetadata)
	docs.POST("/:id/versions", handlers.Document.AddVersion)
	docs.POST("/:id/lock", handlers.Document.Lock)
	docs.DELETE("/:id/lock", handlers.Document.Unlock)
	docs.POST("/:id/presence", handlers.Presence.Join)
	docs.GET("/:id/presence", handlers.Presence.List)

	return router
}

func createDocument(t *testing.T, router *gin.Engine, token, title string) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(router, "POST", "/api/v1/documents", map[string]interface{}{
		"title":       title,
		"type":        "specification",
		"owner":       "user-alice",
		"filename":    "spec.pdf",
		"storage_key": "documents/spec.pdf",
		"size":        1024,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	return resp["data"].(map[string]interface{})
}

func TestDocumentCreateAndGet(t *testing.T) {
	router := setupDocumentTest(t)
	token := testutil.DefaultTestToken()

	doc := createDocument(t, router, token, "Handler Spec")
	docID := doc["id"].(string)

	w := testutil.DoRequest(router, "GET", "/api/v1/documents/"+docID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["title"] != "Handler Spec" {
		t.Errorf("Unexpected title: %v", data["title"])
	}
	if data["current_version"].(float64) != 1 {
		t.Errorf("Expected current_version 1, got %v", data["current_version"])
	}
}

func TestDocumentRequiresAuth(t *testing.T) {
	router := setupDocumentTest(t)

	w := testutil.DoRequest(router, "GET", "/api/v1/documents", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}

func TestDocumentNotFoundResponse(t *testing.T) {
	router := setupDocumentTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "GET", "/api/v1/documents/no-such-doc", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40400 {
		t.Errorf("Expected code 40400, got %v", resp["code"])
	}
}

func TestDocumentLockConflictResponse(t *testing.T) {
	router := setupDocumentTest(t)
	alice := testutil.GenerateTestToken("user-alice", "Alice", "alice@test.com")
	bob := testutil.GenerateTestToken("user-bob", "Bob", "bob@test.com")

	doc := createDocument(t, router, alice, "Locked Doc")
	docID := doc["id"].(string)

	w := testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/lock", nil, alice)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on lock, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/lock", nil, bob)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 on contested lock, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40300 {
		t.Errorf("Expected code 40300, got %v", resp["code"])
	}

	// 强制抢占
	w = testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/lock", map[string]interface{}{
		"force": true,
	}, bob)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on force lock, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, "DELETE", "/api/v1/documents/"+docID+"/lock", nil, bob)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on unlock, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPresenceJoinAndList(t *testing.T) {
	router := setupDocumentTest(t)
	token := testutil.GenerateTestToken("user-alice", "Alice", "alice@test.com")

	doc := createDocument(t, router, token, "Shared Doc")
	docID := doc["id"].(string)

	w := testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/presence", map[string]interface{}{
		"status": "editing",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on join, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	session := resp["data"].(map[string]interface{})
	if session["user_name"] != "Alice" {
		t.Errorf("Expected user_name from token claims, got %v", session["user_name"])
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/documents/"+docID+"/presence", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on list, got %d", w.Code)
	}
	resp = testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("Expected 1 active session, got %d", len(items))
	}
}
