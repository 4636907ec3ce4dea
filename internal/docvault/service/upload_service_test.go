package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
	"github.com/bitfantasy/docvault/internal/docvault/testutil"
	"gorm.io/gorm"
)

func setupUploadService(t *testing.T, ttl time.Duration) (*UploadService, *DocumentService, *memBlobStore, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	blob := newMemBlobStore()
	docSvc := NewDocumentService(repository.NewDocumentRepository(db), blob, nil, nil)
	svc := NewUploadService(repository.NewUploadRepository(db), docSvc, blob, t.TempDir(), ttl, nil)
	return svc, docSvc, blob, db
}

func initUploadSession(t *testing.T, svc *UploadService, totalSize, chunkSize int64) *entity.UploadSession {
	t.Helper()
	session, err := svc.Init(context.Background(), &InitUploadRequest{
		Title:     "Chunked Manual",
		Type:      "manual",
		Owner:     "user-alice",
		Filename:  "manual.pdf",
		MimeType:  "application/pdf",
		TotalSize: totalSize,
		ChunkSize: chunkSize,
	}, "user-alice")
	if err != nil {
		t.Fatalf("init upload: %v", err)
	}
	return session
}

func TestUploadLifecycle(t *testing.T) {
	svc, _, blob, _ := setupUploadService(t, time.Hour)
	ctx := context.Background()

	// 10字节按3字节分片：4个分片，最后一片1字节
	content := "0123456789"
	session := initUploadSession(t, svc, 10, 3)
	if session.ExpectedChunks() != 4 {
		t.Fatalf("Expected 4 chunks, got %d", session.ExpectedChunks())
	}

	// 乱序加重复上传
	chunks := map[int]string{1: "012", 2: "345", 3: "678", 4: "9"}
	for _, n := range []int{3, 1, 4, 2, 3} {
		updated, err := svc.PutChunk(ctx, session.ID, n, strings.NewReader(chunks[n]))
		if err != nil {
			t.Fatalf("put chunk %d: %v", n, err)
		}
		if !updated.ReceivedChunks.Contains(n) {
			t.Errorf("Chunk %d not recorded: %v", n, updated.ReceivedChunks)
		}
	}

	progress, err := svc.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(progress.ReceivedChunks) != 4 {
		t.Fatalf("Expected 4 recorded chunks, got %v", progress.ReceivedChunks)
	}

	doc, err := svc.Finalize(ctx, session.ID, "user-alice", "")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if doc.CurrentVersion != 1 {
		t.Errorf("Expected version 1, got %d", doc.CurrentVersion)
	}
	if len(doc.Versions) != 1 || doc.Versions[0].Size != 10 {
		t.Errorf("Unexpected version metadata: %+v", doc.Versions)
	}

	// 拼接内容完整写入对象存储
	reader, err := blob.Get(ctx, doc.Versions[0].StorageKey)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	defer reader.Close()
	data, _ := io.ReadAll(reader)
	if string(data) != content {
		t.Errorf("Assembled content mismatch: %q", data)
	}

	// 未显式给出校验和时回落到拼接时计算的sha256
	sum := sha256.Sum256([]byte(content))
	if doc.Versions[0].Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("Checksum mismatch: %s", doc.Versions[0].Checksum)
	}

	// 会话已删除
	if _, err := svc.Get(ctx, session.ID); !errs.IsNotFound(err) {
		t.Errorf("Expected session gone after finalize, got %v", err)
	}
}

func TestUploadFinalizeIncomplete(t *testing.T) {
	svc, _, _, _ := setupUploadService(t, time.Hour)
	ctx := context.Background()

	session := initUploadSession(t, svc, 10, 3)
	for n, data := range map[int]string{1: "012", 3: "678"} {
		if _, err := svc.PutChunk(ctx, session.ID, n, strings.NewReader(data)); err != nil {
			t.Fatalf("put chunk %d: %v", n, err)
		}
	}

	if _, err := svc.Finalize(ctx, session.ID, "user-alice", ""); !errs.IsValidation(err) {
		t.Errorf("Expected validation error for incomplete upload, got %v", err)
	}

	// 失败的finalize不销毁会话，补齐后可重试
	for n, data := range map[int]string{2: "345", 4: "9"} {
		if _, err := svc.PutChunk(ctx, session.ID, n, strings.NewReader(data)); err != nil {
			t.Fatalf("put chunk %d: %v", n, err)
		}
	}
	if _, err := svc.Finalize(ctx, session.ID, "user-alice", ""); err != nil {
		t.Errorf("Finalize after completing chunks should succeed: %v", err)
	}
}

func TestUploadChunkValidation(t *testing.T) {
	svc, _, _, _ := setupUploadService(t, time.Hour)
	ctx := context.Background()

	session := initUploadSession(t, svc, 10, 3)
	if _, err := svc.PutChunk(ctx, session.ID, 0, strings.NewReader("x")); !errs.IsValidation(err) {
		t.Errorf("Expected validation error for chunk 0, got %v", err)
	}
	if _, err := svc.PutChunk(ctx, "no-such-session", 1, strings.NewReader("x")); !errs.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestUploadInitValidation(t *testing.T) {
	svc, _, _, _ := setupUploadService(t, time.Hour)
	ctx := context.Background()

	if _, err := svc.Init(ctx, &InitUploadRequest{
		Title: "x", Type: "manual", Owner: "user-alice", Filename: "f.pdf",
		TotalSize: 0, ChunkSize: 3,
	}, "user-alice"); !errs.IsValidation(err) {
		t.Errorf("Expected validation error for zero size, got %v", err)
	}
	if _, err := svc.Init(ctx, &InitUploadRequest{
		Title: "x", Type: "manual", Owner: "user-alice", Filename: "f.pdf",
		TotalSize: 10, ChunkSize: 0,
	}, "user-alice"); !errs.IsValidation(err) {
		t.Errorf("Expected validation error for zero chunk size, got %v", err)
	}
}

func TestUploadAbortIdempotent(t *testing.T) {
	svc, _, _, _ := setupUploadService(t, time.Hour)
	ctx := context.Background()

	session := initUploadSession(t, svc, 10, 3)
	if err := svc.Abort(ctx, session.ID); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if _, err := svc.Get(ctx, session.ID); !errs.IsNotFound(err) {
		t.Errorf("Expected session gone after abort, got %v", err)
	}
	if err := svc.Abort(ctx, session.ID); err != nil {
		t.Errorf("repeat abort should succeed: %v", err)
	}
}

func TestUploadCleanupExpired(t *testing.T) {
	svc, _, _, db := setupUploadService(t, time.Hour)
	ctx := context.Background()

	stale := initUploadSession(t, svc, 10, 3)
	fresh := initUploadSession(t, svc, 10, 3)

	// 把一个会话的最后活动时间拨回TTL之前
	db.Model(&entity.UploadSession{}).
		Where("id = ?", stale.ID).
		Update("updated_at", time.Now().Add(-2*time.Hour))

	cleaned, err := svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if cleaned != 1 {
		t.Errorf("Expected 1 session cleaned, got %d", cleaned)
	}
	if _, err := svc.Get(ctx, stale.ID); !errs.IsNotFound(err) {
		t.Errorf("Expected stale session removed, got %v", err)
	}
	if _, err := svc.Get(ctx, fresh.ID); err != nil {
		t.Errorf("Fresh session must survive cleanup: %v", err)
	}
}
