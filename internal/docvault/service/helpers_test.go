package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
	"github.com/bitfantasy/docvault/internal/docvault/storage"
	"github.com/bitfantasy/docvault/internal/docvault/testutil"
)

// memBlobStore 内存对象存储，测试用
type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: map[string][]byte{}}
}

func (s *memBlobStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memBlobStore) Stat(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return int64(len(data)), nil
}

func setupDocumentService(t *testing.T) (*DocumentService, *memBlobStore, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	blob := newMemBlobStore()
	svc := NewDocumentService(repository.NewDocumentRepository(db), blob, nil, nil)
	return svc, blob, db
}

func createTestDocument(t *testing.T, svc *DocumentService) *entity.Document {
	t.Helper()
	doc, err := svc.Create(context.Background(), &CreateDocumentRequest{
		Title:      "Motor Assembly Spec",
		Type:       "specification",
		Category:   "engineering",
		Owner:      "user-alice",
		Department: "rd",
		Tags:       []string{"motor", "assembly"},
		Filename:   "motor-spec.pdf",
		StorageKey: "documents/2025/09/01/abc123.pdf",
		MimeType:   "application/pdf",
		Size:       2048,
		Checksum:   "deadbeef",
	}, "user-alice")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}
