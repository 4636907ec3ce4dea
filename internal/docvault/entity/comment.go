package entity

import (
	"time"
)

// Comment 文档评论
type Comment struct {
	ID         string      `json:"id" gorm:"primaryKey;size:32"`
	DocumentID string      `json:"document_id" gorm:"size:32;not null;index"`
	AuthorID   string      `json:"author_id" gorm:"size:64;not null"`
	AuthorName string      `json:"author_name" gorm:"size:128"`
	Message    string      `json:"message" gorm:"type:text;not null"`
	Mentions   StringArray `json:"mentions" gorm:"type:jsonb"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (Comment) TableName() string {
	return "comments"
}

// AuditLog 审计日志
type AuditLog struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	EntityType  string    `json:"entity_type" gorm:"size:32;not null;index"`
	EntityID    string    `json:"entity_id" gorm:"size:32;not null;index"`
	Action      string    `json:"action" gorm:"size:64;not null"`
	PerformedBy string    `json:"performed_by" gorm:"size:64;not null"`
	Metadata    JSONB     `json:"metadata" gorm:"type:jsonb"`
	CreatedAt   time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
