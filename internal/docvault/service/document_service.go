package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
	"github.com/bitfantasy/docvault/internal/docvault/fanout"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
	"github.com/bitfantasy/docvault/internal/docvault/storage"
)

// DocumentService 文档服务：版本链、编辑锁与元数据
type DocumentService struct {
	repo   *repository.DocumentRepository
	blob   storage.BlobStore
	fan    *fanout.Fanout
	logger *zap.Logger
}

// NewDocumentService 创建文档服务
func NewDocumentService(repo *repository.DocumentRepository, blob storage.BlobStore, fan *fanout.Fanout, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, blob: blob, fan: fan, logger: logger}
}

// CreateDocumentRequest 创建文档请求
type CreateDocumentRequest struct {
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Category   string   `json:"category"`
	Owner      string   `json:"owner"`
	Department string   `json:"department"`
	Tags       []string `json:"tags"`
	Status     string   `json:"status"`
	Filename   string   `json:"filename"`
	StorageKey string   `json:"storage_key"`
	MimeType   string   `json:"mime_type"`
	Size       int64    `json:"size"`
	Checksum   string   `json:"checksum"`
}

// AddVersionRequest 追加版本请求
type AddVersionRequest struct {
	Filename   string `json:"filename"`
	StorageKey string `json:"storage_key"`
	MimeType   string `json:"mime_type"`
	Size       int64  `json:"size"`
	Checksum   string `json:"checksum"`
}

// UpdateMetadataRequest 元数据部分更新请求，nil/空字段不变
type UpdateMetadataRequest struct {
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Department string   `json:"department"`
	Tags       []string `json:"tags"`
	Status     string   `json:"status"`
}

// DocumentListResult 文档列表结果
type DocumentListResult struct {
	Items      []entity.Document `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

func validStatus(status string) bool {
	switch status {
	case entity.DocumentStatusDraft, entity.DocumentStatusInReview,
		entity.DocumentStatusApproved, entity.DocumentStatusArchived:
		return true
	}
	return false
}

// Create 创建文档。文档行与版本1在同一事务内落库，current_version=1。
func (s *DocumentService) Create(ctx context.Context, req *CreateDocumentRequest, createdBy string) (*entity.Document, error) {
	if req.Title == "" || req.Type == "" || req.Owner == "" {
		return nil, errs.Validation("title, type and owner are required")
	}
	if req.Filename == "" || req.StorageKey == "" {
		return nil, errs.Validation("filename and storage key are required")
	}
	status := req.Status
	if status == "" {
		status = entity.DocumentStatusDraft
	}
	if !validStatus(status) {
		return nil, errs.Validation("invalid document status: %s", status)
	}

	now := time.Now()
	doc := &entity.Document{
		ID:             uuid.New().String()[:32],
		Title:          req.Title,
		Type:           req.Type,
		Category:       req.Category,
		Owner:          req.Owner,
		Department:     req.Department,
		Tags:           entity.StringArray(req.Tags),
		Status:         status,
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	first := &entity.DocumentVersion{
		ID:            uuid.New().String()[:32],
		VersionNumber: 1,
		Filename:      req.Filename,
		StorageKey:    req.StorageKey,
		MimeType:      req.MimeType,
		Size:          req.Size,
		Checksum:      req.Checksum,
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}

	if err := s.repo.Create(ctx, doc, first); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.logger.Info("Document created",
		zap.String("document_id", doc.ID),
		zap.String("title", doc.Title),
	)
	s.fan.Audit(ctx, fanout.AuditEntry{
		EntityType:  "document",
		EntityID:    doc.ID,
		Action:      "document.created",
		PerformedBy: createdBy,
		Metadata:    map[string]interface{}{"title": doc.Title, "type": doc.Type},
	})
	s.fan.Publish(ctx, "documents.created", map[string]interface{}{
		"document_id": doc.ID,
		"owner":       doc.Owner,
	})
	s.fan.Broadcast(fanout.ChannelDocumentUpdated, map[string]interface{}{
		"document_id": doc.ID,
		"event":       "created",
	})

	return s.repo.FindByID(ctx, doc.ID)
}

// Get 获取文档详情
func (s *DocumentService) Get(ctx context.Context, id string) (*entity.Document, error) {
	return s.repo.FindByID(ctx, id)
}

// List 获取文档列表
func (s *DocumentService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) (*DocumentListResult, error) {
	docs, total, err := s.repo.List(ctx, page, pageSize, filters)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &DocumentListResult{
		Items:      docs,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// AddVersion 追加新版本。版本号分配在仓储层的行锁事务内完成。
func (s *DocumentService) AddVersion(ctx context.Context, documentID string, req *AddVersionRequest, createdBy string) (*entity.Document, error) {
	if req.Filename == "" || req.StorageKey == "" {
		return nil, errs.Validation("filename and storage key are required")
	}

	version := &entity.DocumentVersion{
		ID:         uuid.New().String()[:32],
		Filename:   req.Filename,
		StorageKey: req.StorageKey,
		MimeType:   req.MimeType,
		Size:       req.Size,
		Checksum:   req.Checksum,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now(),
	}

	doc, err := s.repo.AddVersion(ctx, documentID, version)
	if err != nil {
		return nil, err
	}

	s.logger.Info("New document version added",
		zap.String("document_id", doc.ID),
		zap.Int("version", doc.CurrentVersion),
	)
	s.fan.Audit(ctx, fanout.AuditEntry{
		EntityType:  "document",
		EntityID:    doc.ID,
		Action:      "document.version.added",
		PerformedBy: createdBy,
		Metadata:    map[string]interface{}{"filename": req.Filename, "version": doc.CurrentVersion},
	})
	s.fan.Publish(ctx, "documents.version.added", map[string]interface{}{
		"document_id": doc.ID,
		"version":     doc.CurrentVersion,
	})
	s.fan.Broadcast(fanout.ChannelDocumentVersionAdded, map[string]interface{}{
		"document_id": doc.ID,
		"version":     doc.CurrentVersion,
	})

	return doc, nil
}

// UpdateMetadata 部分更新元数据，patch语义
func (s *DocumentService) UpdateMetadata(ctx context.Context, id string, req *UpdateMetadataRequest, updatedBy string) (*entity.Document, error) {
	updates := map[string]interface{}{}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Category != "" {
		updates["category"] = req.Category
	}
	if req.Department != "" {
		updates["department"] = req.Department
	}
	if req.Tags != nil {
		updates["tags"] = entity.StringArray(req.Tags)
	}
	if req.Status != "" {
		if !validStatus(req.Status) {
			return nil, errs.Validation("invalid document status: %s", req.Status)
		}
		updates["status"] = req.Status
	}

	doc, err := s.repo.UpdateMetadata(ctx, id, updates)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document metadata updated", zap.String("document_id", doc.ID))
	s.fan.Audit(ctx, fanout.AuditEntry{
		EntityType:  "document",
		EntityID:    doc.ID,
		Action:      "document.updated",
		PerformedBy: updatedBy,
		Metadata:    map[string]interface{}{"changes": updates},
	})
	s.fan.Publish(ctx, "documents.metadata.updated", map[string]interface{}{
		"document_id": doc.ID,
	})
	s.fan.Broadcast(fanout.ChannelDocumentUpdated, map[string]interface{}{
		"document_id": doc.ID,
		"event":       "metadata-updated",
	})

	return doc, nil
}

// Lock 获取编辑锁；force为显式抢占并记入审计
func (s *DocumentService) Lock(ctx context.Context, id, userID string, force bool) (*entity.Document, error) {
	doc, err := s.repo.Lock(ctx, id, userID, force)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document locked",
		zap.String("document_id", doc.ID),
		zap.String("lock_owner", userID),
		zap.Bool("force", force),
	)
	s.fan.Audit(ctx, fanout.AuditEntry{
		EntityType:  "document",
		EntityID:    doc.ID,
		Action:      "document.locked",
		PerformedBy: userID,
		Metadata:    map[string]interface{}{"force": force},
	})
	s.fan.Publish(ctx, "documents.locked", map[string]interface{}{
		"document_id": doc.ID,
		"user_id":     userID,
		"force":       force,
	})
	s.fan.Broadcast(fanout.ChannelDocumentUpdated, map[string]interface{}{
		"document_id": doc.ID,
		"event":       "locked",
		"user_id":     userID,
	})

	return doc, nil
}

// Unlock 释放编辑锁
func (s *DocumentService) Unlock(ctx context.Context, id, userID string) (*entity.Document, error) {
	doc, err := s.repo.Unlock(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document unlocked",
		zap.String("document_id", doc.ID),
		zap.String("user_id", userID),
	)
	s.fan.Audit(ctx, fanout.AuditEntry{
		EntityType:  "document",
		EntityID:    doc.ID,
		Action:      "document.unlocked",
		PerformedBy: userID,
	})
	s.fan.Publish(ctx, "documents.unlocked", map[string]interface{}{
		"document_id": doc.ID,
		"user_id":     userID,
	})
	s.fan.Broadcast(fanout.ChannelDocumentUpdated, map[string]interface{}{
		"document_id": doc.ID,
		"event":       "unlocked",
		"user_id":     userID,
	})

	return doc, nil
}

// ToggleFavorite 收藏/取消收藏
func (s *DocumentService) ToggleFavorite(ctx context.Context, id, userID string) (*entity.Document, bool, error) {
	doc, favorited, err := s.repo.ToggleFavorite(ctx, id, userID)
	if err != nil {
		return nil, false, err
	}

	action := "document.unfavorited"
	if favorited {
		action = "document.favorited"
	}
	s.fan.Audit(ctx, fanout.AuditEntry{
		EntityType:  "document",
		EntityID:    doc.ID,
		Action:      action,
		PerformedBy: userID,
	})

	return doc, favorited, nil
}

// GetVersion 解析指定版本；versionNumber为nil时返回当前版本
func (s *DocumentService) GetVersion(ctx context.Context, documentID string, versionNumber *int) (*entity.DocumentVersion, error) {
	return s.repo.GetVersion(ctx, documentID, versionNumber)
}

// Download 从对象存储取回指定版本内容
func (s *DocumentService) Download(ctx context.Context, documentID string, versionNumber *int) (io.ReadCloser, *entity.DocumentVersion, error) {
	version, err := s.repo.GetVersion(ctx, documentID, versionNumber)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.blob.Get(ctx, version.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, errs.NotFound("document content not found in storage")
		}
		return nil, nil, fmt.Errorf("get blob: %w", err)
	}
	return reader, version, nil
}

// PutBlob 把文件内容写入对象存储，返回生成的storage key
func (s *DocumentService) PutBlob(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	key := fmt.Sprintf("documents/%s/%s%s",
		time.Now().Format("2006/01/02"),
		uuid.New().String()[:8],
		filepath.Ext(filename),
	)
	if err := s.blob.Put(ctx, key, reader, size, contentType); err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return key, nil
}
