package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
)

func TestDocumentCreateFirstVersion(t *testing.T) {
	svc, _, _ := setupDocumentService(t)
	doc := createTestDocument(t, svc)

	if doc.CurrentVersion != 1 {
		t.Errorf("Expected current_version 1, got %d", doc.CurrentVersion)
	}
	if doc.Status != entity.DocumentStatusDraft {
		t.Errorf("Expected status draft, got %s", doc.Status)
	}
	if len(doc.Versions) != 1 {
		t.Fatalf("Expected 1 version, got %d", len(doc.Versions))
	}
	if doc.Versions[0].VersionNumber != 1 {
		t.Errorf("Expected version_number 1, got %d", doc.Versions[0].VersionNumber)
	}
	if doc.Versions[0].Filename != "motor-spec.pdf" {
		t.Errorf("Unexpected filename: %s", doc.Versions[0].Filename)
	}
}

func TestDocumentCreateValidation(t *testing.T) {
	svc, _, _ := setupDocumentService(t)

	_, err := svc.Create(context.Background(), &CreateDocumentRequest{
		Title: "No type or owner",
	}, "user-alice")
	if !errs.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}

	_, err = svc.Create(context.Background(), &CreateDocumentRequest{
		Title:    "Bad status",
		Type:     "specification",
		Owner:    "user-alice",
		Filename: "f.pdf", StorageKey: "k",
		Status: "published",
	}, "user-alice")
	if !errs.IsValidation(err) {
		t.Errorf("Expected validation error for bad status, got %v", err)
	}
}

func TestDocumentAddVersionSequential(t *testing.T) {
	svc, _, _ := setupDocumentService(t)
	doc := createTestDocument(t, svc)

	for i := 2; i <= 4; i++ {
		updated, err := svc.AddVersion(context.Background(), doc.ID, &AddVersionRequest{
			Filename:   fmt.Sprintf("motor-spec-v%d.pdf", i),
			StorageKey: fmt.Sprintf("documents/v%d.pdf", i),
			Size:       int64(1000 + i),
		}, "user-bob")
		if err != nil {
			t.Fatalf("add version %d: %v", i, err)
		}
		if updated.CurrentVersion != i {
			t.Errorf("Expected current_version %d, got %d", i, updated.CurrentVersion)
		}
	}

	final, err := svc.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if len(final.Versions) != 4 {
		t.Fatalf("Expected 4 versions, got %d", len(final.Versions))
	}
	for i, v := range final.Versions {
		if v.VersionNumber != i+1 {
			t.Errorf("Expected version %d at index %d, got %d", i+1, i, v.VersionNumber)
		}
	}
}

func TestDocumentAddVersionConcurrent(t *testing.T) {
	svc, _, _ := setupDocumentService(t)
	doc := createTestDocument(t, svc)

	const workers = 5
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.AddVersion(context.Background(), doc.ID, &AddVersionRequest{
				Filename:   fmt.Sprintf("concurrent-%d.pdf", n),
				StorageKey: fmt.Sprintf("documents/concurrent-%d.pdf", n),
			}, "user-bob")
			errCh <- err
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("concurrent add version: %v", err)
		}
	}

	final, err := svc.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if final.CurrentVersion != workers+1 {
		t.Errorf("Expected current_version %d, got %d", workers+1, final.CurrentVersion)
	}
	if len(final.Versions) != workers+1 {
		t.Fatalf("Expected %d versions, got %d", workers+1, len(final.Versions))
	}
	// 版本号必须连续且不重复
	for i, v := range final.Versions {
		if v.VersionNumber != i+1 {
			t.Errorf("Version numbers not contiguous: index %d has %d", i, v.VersionNumber)
		}
	}
}

func TestDocumentLockSemantics(t *testing.T) {
	svc, _, _ := setupDocumentService(t)
	doc := createTestDocument(t, svc)
	ctx := context.Background()

	locked, err := svc.Lock(ctx, doc.ID, "user-alice", false)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !locked.IsLocked || locked.LockOwner != "user-alice" {
		t.Errorf("Expected alice to hold the lock, got owner=%s locked=%v", locked.LockOwner, locked.IsLocked)
	}

	// 持有者重复加锁是幂等的
	if _, err := svc.Lock(ctx, doc.ID, "user-alice", false); err != nil {
		t.Errorf("re-lock by owner should succeed: %v", err)
	}

	// 他人非强制加锁被拒
	if _, err := svc.Lock(ctx, doc.ID, "user-bob", false); !errs.IsAuthorization(err) {
		t.Errorf("Expected authorization error, got %v", err)
	}

	// 强制抢占
	forced, err := svc.Lock(ctx, doc.ID, "user-bob", true)
	if err != nil {
		t.Fatalf("force lock: %v", err)
	}
	if forced.LockOwner != "user-bob" {
		t.Errorf("Expected bob to own the lock after force, got %s", forced.LockOwner)
	}

	// 非持有者解锁被拒
	if _, err := svc.Unlock(ctx, doc.ID, "user-alice"); !errs.IsAuthorization(err) {
		t.Errorf("Expected authorization error on unlock by non-owner, got %v", err)
	}

	unlocked, err := svc.Unlock(ctx, doc.ID, "user-bob")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if unlocked.IsLocked || unlocked.LockOwner != "" {
		t.Errorf("Expected lock cleared, got owner=%s locked=%v", unlocked.LockOwner, unlocked.IsLocked)
	}
}

func TestDocumentUpdateMetadataPatch(t *testing.T) {
	svc, _, _ := setupDocumentService(t)
	doc := createTestDocument(t, svc)

	updated, err := svc.UpdateMetadata(context.Background(), doc.ID, &UpdateMetadataRequest{
		Title: "Motor Assembly Spec v2",
	}, "user-alice")
	if err != nil {
		t.Fatalf("update metadata: %v", err)
	}
	if updated.Title != "Motor Assembly Spec v2" {
		t.Errorf("Title not updated: %s", updated.Title)
	}
	if updated.Category != "engineering" || updated.Department != "rd" {
		t.Errorf("Untouched fields changed: category=%s department=%s", updated.Category, updated.Department)
	}

	if _, err := svc.UpdateMetadata(context.Background(), doc.ID, &UpdateMetadataRequest{
		Status: "published",
	}, "user-alice"); !errs.IsValidation(err) {
		t.Errorf("Expected validation error for bad status, got %v", err)
	}
}

func TestDocumentGetVersion(t *testing.T) {
	svc, _, _ := setupDocumentService(t)
	doc := createTestDocument(t, svc)
	ctx := context.Background()

	if _, err := svc.AddVersion(ctx, doc.ID, &AddVersionRequest{
		Filename: "v2.pdf", StorageKey: "documents/v2.pdf",
	}, "user-bob"); err != nil {
		t.Fatalf("add version: %v", err)
	}

	// nil 解析为当前版本
	current, err := svc.GetVersion(ctx, doc.ID, nil)
	if err != nil {
		t.Fatalf("get current version: %v", err)
	}
	if current.VersionNumber != 2 {
		t.Errorf("Expected current version 2, got %d", current.VersionNumber)
	}

	one := 1
	v1, err := svc.GetVersion(ctx, doc.ID, &one)
	if err != nil {
		t.Fatalf("get version 1: %v", err)
	}
	if v1.Filename != "motor-spec.pdf" {
		t.Errorf("Unexpected filename for v1: %s", v1.Filename)
	}

	missing := 9
	if _, err := svc.GetVersion(ctx, doc.ID, &missing); !errs.IsNotFound(err) {
		t.Errorf("Expected not found for version 9, got %v", err)
	}
}

func TestDocumentDownload(t *testing.T) {
	svc, blob, _ := setupDocumentService(t)
	ctx := context.Background()

	content := "drawing file content"
	key, err := svc.PutBlob(ctx, "drawing.dwg", strings.NewReader(content), int64(len(content)), "application/octet-stream")
	if err != nil {
		t.Fatalf("put blob: %v", err)
	}
	if _, err := blob.Stat(ctx, key); err != nil {
		t.Fatalf("blob not stored: %v", err)
	}

	doc, err := svc.Create(ctx, &CreateDocumentRequest{
		Title: "Drawing", Type: "drawing", Owner: "user-alice",
		Filename: "drawing.dwg", StorageKey: key,
		Size: int64(len(content)),
	}, "user-alice")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	reader, version, err := svc.Download(ctx, doc.ID, nil)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer reader.Close()
	data, _ := io.ReadAll(reader)
	if string(data) != content {
		t.Errorf("Downloaded content mismatch: %q", data)
	}
	if version.VersionNumber != 1 {
		t.Errorf("Expected version 1, got %d", version.VersionNumber)
	}
}

func TestDocumentToggleFavorite(t *testing.T) {
	svc, _, _ := setupDocumentService(t)
	doc := createTestDocument(t, svc)
	ctx := context.Background()

	updated, favorited, err := svc.ToggleFavorite(ctx, doc.ID, "user-carol")
	if err != nil {
		t.Fatalf("toggle favorite: %v", err)
	}
	if !favorited || !updated.FavoriteBy.Contains("user-carol") {
		t.Errorf("Expected carol in favorite_by, got %v", updated.FavoriteBy)
	}

	updated, favorited, err = svc.ToggleFavorite(ctx, doc.ID, "user-carol")
	if err != nil {
		t.Fatalf("toggle favorite again: %v", err)
	}
	if favorited || updated.FavoriteBy.Contains("user-carol") {
		t.Errorf("Expected carol removed from favorite_by, got %v", updated.FavoriteBy)
	}
}
