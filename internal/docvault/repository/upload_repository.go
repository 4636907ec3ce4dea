package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
)

// UploadRepository 上传会话仓储
type UploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository 创建上传会话仓储
func NewUploadRepository(db *gorm.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create 创建上传会话
func (r *UploadRepository) Create(ctx context.Context, session *entity.UploadSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// FindByID 根据ID查找上传会话
func (r *UploadRepository) FindByID(ctx context.Context, id string) (*entity.UploadSession, error) {
	var session entity.UploadSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("upload session not found")
		}
		return nil, err
	}
	return &session, nil
}

// MarkChunkReceived 把分片序号并入已收集合。
// 行锁保证并发上传不同分片时集合更新不丢失；重复序号无害。
func (r *UploadRepository) MarkChunkReceived(ctx context.Context, id string, chunkNumber int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session entity.UploadSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("upload session not found")
			}
			return err
		}

		if session.ReceivedChunks.Contains(chunkNumber) {
			return nil
		}

		chunks := append(session.ReceivedChunks, chunkNumber)
		sort.Ints(chunks)

		return tx.Model(&entity.UploadSession{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"received_chunks": entity.IntArray(chunks),
				"updated_at":      time.Now(),
			}).Error
	})
}

// Delete 删除上传会话
func (r *UploadRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.UploadSession{}).Error
}

// ListExpired 列出最后活动早于截止点的会话（孤儿会话回收用）
func (r *UploadRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]entity.UploadSession, error) {
	var sessions []entity.UploadSession
	err := r.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Find(&sessions).Error
	return sessions, err
}
