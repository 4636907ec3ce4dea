package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
)

// DocumentRepository 文档仓储
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create 在一个事务里同时写入文档行与版本1
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document, first *entity.DocumentVersion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(doc).Error; err != nil {
			return err
		}
		first.DocumentID = doc.ID
		return tx.Create(first).Error
	})
}

// FindByID 根据ID查找文档（含版本链，按版本号升序）
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*entity.Document, error) {
	var doc entity.Document
	err := r.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("version_number ASC")
		}).
		Where("id = ?", id).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("document not found")
		}
		return nil, err
	}
	return &doc, nil
}

// List 获取文档列表
func (r *DocumentRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Document{})

	if v, ok := filters["type"]; ok {
		query = query.Where("type = ?", v)
	}
	if v, ok := filters["status"]; ok {
		query = query.Where("status = ?", v)
	}
	if v, ok := filters["owner"]; ok {
		query = query.Where("owner = ?", v)
	}
	if v, ok := filters["category"]; ok {
		query = query.Where("category = ?", v)
	}
	if v, ok := filters["keyword"]; ok {
		query = query.Where("title ILIKE ?", "%"+v.(string)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []entity.Document
	err := query.
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// AddVersion 追加新版本。
// 对文档行加排他锁，读-算-写在同一事务内完成，
// 并发追加同一文档串行化，版本号连续无重复。
func (r *DocumentRepository) AddVersion(ctx context.Context, documentID string, version *entity.DocumentVersion) (*entity.Document, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc entity.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", documentID).
			First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("document not found")
			}
			return err
		}

		next := doc.CurrentVersion + 1
		version.DocumentID = documentID
		version.VersionNumber = next
		if err := tx.Create(version).Error; err != nil {
			return err
		}

		return tx.Model(&entity.Document{}).
			Where("id = ?", documentID).
			Updates(map[string]interface{}{
				"current_version": next,
				"updated_at":      time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, documentID)
}

// UpdateMetadata 部分更新元数据，版本链与锁状态不受影响
func (r *DocumentRepository) UpdateMetadata(ctx context.Context, id string, updates map[string]interface{}) (*entity.Document, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc entity.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("document not found")
			}
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = time.Now()
		return tx.Model(&entity.Document{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// Lock 获取编辑锁。check-then-set在同一事务的行锁保护下完成。
func (r *DocumentRepository) Lock(ctx context.Context, id, userID string, force bool) (*entity.Document, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc entity.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("document not found")
			}
			return err
		}

		if doc.IsLocked && doc.LockOwner != userID && !force {
			return errs.Authorization("document already locked by another user")
		}

		return tx.Model(&entity.Document{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_locked":  true,
				"lock_owner": userID,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// Unlock 释放编辑锁，仅持锁人可释放
func (r *DocumentRepository) Unlock(ctx context.Context, id, userID string) (*entity.Document, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc entity.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("document not found")
			}
			return err
		}

		if doc.LockOwner != userID {
			return errs.Authorization("only lock owner can unlock the document")
		}

		return tx.Model(&entity.Document{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_locked":  false,
				"lock_owner": "",
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// ToggleFavorite 收藏/取消收藏，返回切换后的收藏状态
func (r *DocumentRepository) ToggleFavorite(ctx context.Context, id, userID string) (*entity.Document, bool, error) {
	var favorited bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc entity.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("document not found")
			}
			return err
		}

		if doc.FavoriteBy.Contains(userID) {
			next := make(entity.StringArray, 0, len(doc.FavoriteBy))
			for _, u := range doc.FavoriteBy {
				if u != userID {
					next = append(next, u)
				}
			}
			doc.FavoriteBy = next
			favorited = false
		} else {
			doc.FavoriteBy = append(doc.FavoriteBy, userID)
			favorited = true
		}

		return tx.Model(&entity.Document{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"favorite_by": doc.FavoriteBy,
				"updated_at":  time.Now(),
			}).Error
	})
	if err != nil {
		return nil, false, err
	}
	doc, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return doc, favorited, nil
}

// GetVersion 解析指定版本；versionNumber为nil时返回当前版本
func (r *DocumentRepository) GetVersion(ctx context.Context, documentID string, versionNumber *int) (*entity.DocumentVersion, error) {
	var doc entity.Document
	if err := r.db.WithContext(ctx).Where("id = ?", documentID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("document not found")
		}
		return nil, err
	}

	target := doc.CurrentVersion
	if versionNumber != nil {
		target = *versionNumber
	}

	var version entity.DocumentVersion
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND version_number = ?", documentID, target).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("document version not found")
		}
		return nil, err
	}
	return &version, nil
}
