package fanout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
)

// GormAuditor 把审计条目写入 audit_logs 表
type GormAuditor struct {
	db *gorm.DB
}

// NewGormAuditor 创建数据库审计记录器
func NewGormAuditor(db *gorm.DB) *GormAuditor {
	return &GormAuditor{db: db}
}

func (a *GormAuditor) Record(ctx context.Context, entry AuditEntry) error {
	log := &entity.AuditLog{
		ID:          uuid.New().String(),
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Action:      entry.Action,
		PerformedBy: entry.PerformedBy,
		CreatedAt:   time.Now(),
	}
	if entry.Metadata != nil {
		log.Metadata = entity.JSONB(entry.Metadata)
	}
	return a.db.WithContext(ctx).Create(log).Error
}
