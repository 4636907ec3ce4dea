package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
	"github.com/bitfantasy/docvault/internal/docvault/storage"
)

// DefaultUploadSessionTTL 无活动上传会话的回收期限
const DefaultUploadSessionTTL = 24 * time.Hour

// UploadService 分片上传服务。分片落在本地暂存目录，
// finalize 拼接后写入对象存储并走文档创建流程。
type UploadService struct {
	repo       *repository.UploadRepository
	docService *DocumentService
	blob       storage.BlobStore
	tmpDir     string
	sessionTTL time.Duration
	logger     *zap.Logger
}

// NewUploadService 创建分片上传服务
func NewUploadService(repo *repository.UploadRepository, docService *DocumentService, blob storage.BlobStore, tmpDir string, sessionTTL time.Duration, logger *zap.Logger) *UploadService {
	if tmpDir == "" {
		tmpDir = filepath.Join(os.TempDir(), "docvault-uploads")
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultUploadSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{
		repo:       repo,
		docService: docService,
		blob:       blob,
		tmpDir:     tmpDir,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// InitUploadRequest 初始化上传会话请求
type InitUploadRequest struct {
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Category   string   `json:"category"`
	Owner      string   `json:"owner"`
	Department string   `json:"department"`
	Tags       []string `json:"tags"`
	Status     string   `json:"status"`
	Filename   string   `json:"filename"`
	MimeType   string   `json:"mime_type"`
	TotalSize  int64    `json:"total_size"`
	ChunkSize  int64    `json:"chunk_size"`
	Checksum   string   `json:"checksum"`
}

// Init 初始化上传会话并准备暂存目录
func (s *UploadService) Init(ctx context.Context, req *InitUploadRequest, createdBy string) (*entity.UploadSession, error) {
	if req.Title == "" || req.Type == "" || req.Owner == "" {
		return nil, errs.Validation("title, type and owner are required")
	}
	if req.Filename == "" {
		return nil, errs.Validation("filename is required")
	}
	if req.TotalSize <= 0 {
		return nil, errs.Validation("total size must be positive")
	}
	if req.ChunkSize <= 0 {
		return nil, errs.Validation("chunk size must be positive")
	}
	status := req.Status
	if status == "" {
		status = entity.DocumentStatusDraft
	}
	if !validStatus(status) {
		return nil, errs.Validation("invalid document status: %s", status)
	}

	id := uuid.New().String()[:32]
	tempDir := filepath.Join(s.tmpDir, id)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	now := time.Now()
	session := &entity.UploadSession{
		ID:             id,
		Title:          req.Title,
		Type:           req.Type,
		Category:       req.Category,
		Owner:          req.Owner,
		Department:     req.Department,
		Tags:           entity.StringArray(req.Tags),
		Status:         status,
		Filename:       req.Filename,
		MimeType:       req.MimeType,
		TotalSize:      req.TotalSize,
		ChunkSize:      req.ChunkSize,
		ReceivedChunks: entity.IntArray{},
		Checksum:       req.Checksum,
		TempDir:        tempDir,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("create upload session: %w", err)
	}

	s.logger.Info("Upload session initialized",
		zap.String("session_id", session.ID),
		zap.String("filename", session.Filename),
		zap.Int("expected_chunks", session.ExpectedChunks()),
	)
	return session, nil
}

// Get 查询上传会话进度
func (s *UploadService) Get(ctx context.Context, sessionID string) (*entity.UploadSession, error) {
	return s.repo.FindByID(ctx, sessionID)
}

// PutChunk 接收一个分片。重复分片直接覆盖暂存文件，幂等。
func (s *UploadService) PutChunk(ctx context.Context, sessionID string, chunkNumber int, r io.Reader) (*entity.UploadSession, error) {
	if chunkNumber < 1 {
		return nil, errs.Validation("chunk number must be >= 1")
	}

	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(session.TempDir, fmt.Sprintf("chunk-%d", chunkNumber))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create chunk file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write chunk file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close chunk file: %w", err)
	}

	if err := s.repo.MarkChunkReceived(ctx, sessionID, chunkNumber); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, sessionID)
}

// Finalize 校验分片集合完整后拼接内容写入对象存储，创建文档（版本1），
// 最后清理暂存并删除会话行。会话行删除前的任何失败都可原样重试。
func (s *UploadService) Finalize(ctx context.Context, sessionID, performedBy, checksum string) (*entity.Document, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	expected := session.ExpectedChunks()
	if len(session.ReceivedChunks) != expected {
		return nil, errs.Validation("upload incomplete: received %d of %d chunks", len(session.ReceivedChunks), expected)
	}
	for i := 1; i <= expected; i++ {
		if !session.ReceivedChunks.Contains(i) {
			return nil, errs.Validation("upload incomplete: chunk %d is missing", i)
		}
	}

	storageKey, computed, err := s.assemble(ctx, session)
	if err != nil {
		return nil, err
	}

	finalChecksum := checksum
	if finalChecksum == "" {
		finalChecksum = session.Checksum
	}
	if finalChecksum == "" {
		finalChecksum = computed
	}

	doc, err := s.docService.Create(ctx, &CreateDocumentRequest{
		Title:      session.Title,
		Type:       session.Type,
		Category:   session.Category,
		Owner:      session.Owner,
		Department: session.Department,
		Tags:       session.Tags,
		Status:     session.Status,
		Filename:   session.Filename,
		StorageKey: storageKey,
		MimeType:   session.MimeType,
		Size:       session.TotalSize,
		Checksum:   finalChecksum,
	}, performedBy)
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(session.TempDir); err != nil {
		s.logger.Warn("Failed to remove upload staging dir",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
	if err := s.repo.Delete(ctx, session.ID); err != nil {
		s.logger.Warn("Failed to delete finalized upload session",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("Upload session finalized",
		zap.String("session_id", session.ID),
		zap.String("document_id", doc.ID),
	)
	return doc, nil
}

// assemble 按编号顺序拼接分片写入对象存储，返回storage key与sha256
func (s *UploadService) assemble(ctx context.Context, session *entity.UploadSession) (string, string, error) {
	assembledPath := filepath.Join(session.TempDir, "assembled")
	out, err := os.Create(assembledPath)
	if err != nil {
		return "", "", fmt.Errorf("create assembled file: %w", err)
	}
	defer out.Close()

	hasher := sha256.New()
	w := io.MultiWriter(out, hasher)
	expected := session.ExpectedChunks()
	for i := 1; i <= expected; i++ {
		chunk, err := os.Open(filepath.Join(session.TempDir, fmt.Sprintf("chunk-%d", i)))
		if err != nil {
			return "", "", fmt.Errorf("open chunk %d: %w", i, err)
		}
		if _, err := io.Copy(w, chunk); err != nil {
			chunk.Close()
			return "", "", fmt.Errorf("concatenate chunk %d: %w", i, err)
		}
		chunk.Close()
	}

	info, err := out.Stat()
	if err != nil {
		return "", "", fmt.Errorf("stat assembled file: %w", err)
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return "", "", fmt.Errorf("rewind assembled file: %w", err)
	}

	storageKey := fmt.Sprintf("documents/%s/%s%s",
		time.Now().Format("2006/01/02"),
		uuid.New().String()[:8],
		filepath.Ext(session.Filename),
	)
	if err := s.blob.Put(ctx, storageKey, out, info.Size(), session.MimeType); err != nil {
		return "", "", fmt.Errorf("upload assembled file: %w", err)
	}

	return storageKey, hex.EncodeToString(hasher.Sum(nil)), nil
}

// Abort 终止上传会话并清理暂存，幂等
func (s *UploadService) Abort(ctx context.Context, sessionID string) error {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil
		}
		return err
	}

	if err := os.RemoveAll(session.TempDir); err != nil {
		s.logger.Warn("Failed to remove upload staging dir",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
	if err := s.repo.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("delete upload session: %w", err)
	}

	s.logger.Info("Upload session aborted", zap.String("session_id", sessionID))
	return nil
}

// CleanupExpired 回收超过TTL无活动的会话及其暂存目录
func (s *UploadService) CleanupExpired(ctx context.Context) (int, error) {
	sessions, err := s.repo.ListExpired(ctx, time.Now().Add(-s.sessionTTL))
	if err != nil {
		return 0, fmt.Errorf("list expired upload sessions: %w", err)
	}

	cleaned := 0
	for _, session := range sessions {
		if err := os.RemoveAll(session.TempDir); err != nil {
			s.logger.Warn("Failed to remove staging dir of expired session",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
		if err := s.repo.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("Failed to delete expired upload session",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
			continue
		}
		cleaned++
	}

	if cleaned > 0 {
		s.logger.Info("Expired upload sessions cleaned", zap.Int("count", cleaned))
	}
	return cleaned, nil
}
