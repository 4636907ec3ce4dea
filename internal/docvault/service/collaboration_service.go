package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
	"github.com/bitfantasy/docvault/internal/docvault/fanout"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
)

// CollaborationService 文档评论
type CollaborationService struct {
	commentRepo *repository.CommentRepository
	docRepo     *repository.DocumentRepository
	fan         *fanout.Fanout
	logger      *zap.Logger
}

// NewCollaborationService 创建协作服务
func NewCollaborationService(commentRepo *repository.CommentRepository, docRepo *repository.DocumentRepository, fan *fanout.Fanout, logger *zap.Logger) *CollaborationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollaborationService{commentRepo: commentRepo, docRepo: docRepo, fan: fan, logger: logger}
}

// AddCommentRequest 添加评论请求
type AddCommentRequest struct {
	DocumentID string   `json:"document_id"`
	AuthorName string   `json:"author_name"`
	Message    string   `json:"message"`
	Mentions   []string `json:"mentions"`
}

// AddComment 在文档上添加评论
func (s *CollaborationService) AddComment(ctx context.Context, req *AddCommentRequest, authorID string) (*entity.Comment, error) {
	if req.Message == "" {
		return nil, errs.Validation("comment message is required")
	}
	if _, err := s.docRepo.FindByID(ctx, req.DocumentID); err != nil {
		return nil, err
	}

	comment := &entity.Comment{
		ID:         uuid.New().String()[:32],
		DocumentID: req.DocumentID,
		AuthorID:   authorID,
		AuthorName: req.AuthorName,
		Message:    req.Message,
		Mentions:   entity.StringArray(req.Mentions),
		CreatedAt:  time.Now(),
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.fan.Audit(ctx, fanout.AuditEntry{
		EntityType:  "document",
		EntityID:    req.DocumentID,
		Action:      "document.comment.added",
		PerformedBy: authorID,
		Metadata:    map[string]interface{}{"comment_id": comment.ID},
	})
	s.fan.Publish(ctx, "documents.comment.added", map[string]interface{}{
		"document_id": req.DocumentID,
		"comment_id":  comment.ID,
		"author_id":   authorID,
	})
	s.fan.Broadcast(fanout.ChannelCommentAdded, map[string]interface{}{
		"document_id": req.DocumentID,
		"comment":     comment,
	})

	return comment, nil
}

// ListComments 按时间正序列出文档评论
func (s *CollaborationService) ListComments(ctx context.Context, documentID string) ([]entity.Comment, error) {
	return s.commentRepo.ListByDocument(ctx, documentID)
}
