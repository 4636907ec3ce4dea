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

// WorkflowRepository 工作流仓储
type WorkflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository 创建工作流仓储
func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create 原子写入工作流及其全部步骤
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.Workflow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(wf).Error; err != nil {
			return err
		}
		for i := range wf.Steps {
			wf.Steps[i].WorkflowID = wf.ID
			if err := tx.Create(&wf.Steps[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID 根据ID查找工作流（步骤按序号升序）
func (r *WorkflowRepository) FindByID(ctx context.Context, id string) (*entity.Workflow, error) {
	var wf entity.Workflow
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Where("id = ?", id).
		First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("workflow not found")
		}
		return nil, err
	}
	return &wf, nil
}

// List 获取工作流列表
func (r *WorkflowRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Workflow, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Workflow{})

	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if documentID, ok := filters["document_id"].(string); ok && documentID != "" {
		query = query.Where("document_id = ?", documentID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var flows []entity.Workflow
	err := query.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&flows).Error
	return flows, total, err
}

// ListByDocument 获取某文档关联的工作流
func (r *WorkflowRepository) ListByDocument(ctx context.Context, documentID string) ([]entity.Workflow, error) {
	var flows []entity.Workflow
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&flows).Error
	return flows, err
}

// Advance 推进工作流。
// 对工作流行加排他锁覆盖整个读-判-写序列，
// 并发推进同一工作流串行化，避免同一步骤被重复决断。
func (r *WorkflowRepository) Advance(ctx context.Context, id string, mutate func(wf *entity.Workflow) error) (*entity.Workflow, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wf entity.Workflow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&wf).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("workflow not found")
			}
			return err
		}

		if err := tx.Where("workflow_id = ?", id).
			Order("step_number ASC").
			Find(&wf.Steps).Error; err != nil {
			return err
		}

		if err := mutate(&wf); err != nil {
			return err
		}

		wf.UpdatedAt = time.Now()
		if err := tx.Omit(clause.Associations).Save(&wf).Error; err != nil {
			return err
		}
		for i := range wf.Steps {
			if err := tx.Save(&wf.Steps[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}
