package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
)

// CommentRepository 评论仓储
type CommentRepository struct {
	db *gorm.DB
}

// NewCommentRepository 创建评论仓储
func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create 写入评论
func (r *CommentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// ListByDocument 按时间正序列出文档评论
func (r *CommentRepository) ListByDocument(ctx context.Context, documentID string) ([]entity.Comment, error) {
	var comments []entity.Comment
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}
