package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
)

// PresenceRepository 协作会话仓储
type PresenceRepository struct {
	db *gorm.DB
}

// NewPresenceRepository 创建协作会话仓储
func NewPresenceRepository(db *gorm.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// DeactivateStale 把超过时效窗口未刷新的活跃会话标记为不活跃。
// 拉取式过期：只在访问时触发，没有后台定时器。
func (r *PresenceRepository) DeactivateStale(ctx context.Context, cutoff time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.PresenceSession{}).
		Where("is_active = ? AND last_seen_at < ?", true, cutoff).
		Update("is_active", false).Error
}

// FindActive 查找某用户在某文档上的活跃会话
func (r *PresenceRepository) FindActive(ctx context.Context, documentID, userID string) (*entity.PresenceSession, error) {
	var session entity.PresenceSession
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ? AND is_active = ?", documentID, userID, true).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("presence session not found")
		}
		return nil, err
	}
	return &session, nil
}

// FindByID 根据会话ID查找
func (r *PresenceRepository) FindByID(ctx context.Context, id string) (*entity.PresenceSession, error) {
	var session entity.PresenceSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("presence session not found")
		}
		return nil, err
	}
	return &session, nil
}

// Create 创建会话。部分唯一索引 (document_id, user_id) WHERE is_active
// 兜底并发join产生重复活跃会话的竞态，冲突以 gorm.ErrDuplicatedKey 浮出。
func (r *PresenceRepository) Create(ctx context.Context, session *entity.PresenceSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// Save 保存会话全部字段
func (r *PresenceRepository) Save(ctx context.Context, session *entity.PresenceSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

// ListActive 列出文档当前的活跃会话，最近心跳在前
func (r *PresenceRepository) ListActive(ctx context.Context, documentID string, cutoff time.Time) ([]entity.PresenceSession, error) {
	var sessions []entity.PresenceSession
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND is_active = ? AND last_seen_at >= ?", documentID, true, cutoff).
		Order("last_seen_at DESC").
		Find(&sessions).Error
	return sessions, err
}
