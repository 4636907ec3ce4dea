package entity

import (
	"time"
)

// 文档状态常量
const (
	DocumentStatusDraft    = "draft"
	DocumentStatusInReview = "in-review"
	DocumentStatusApproved = "approved"
	DocumentStatusArchived = "archived"
)

// Document 受管文档
// current_version 始终等于最新追加版本的 version_number；
// is_locked 为 true 当且仅当 lock_owner 非空。
type Document struct {
	ID             string      `json:"id" gorm:"primaryKey;size:32"`
	Title          string      `json:"title" gorm:"size:256;not null"`
	Type           string      `json:"type" gorm:"size:64;not null"`
	Category       string      `json:"category" gorm:"size:64"`
	Owner          string      `json:"owner" gorm:"size:64;not null;index"`
	Department     string      `json:"department" gorm:"size:64"`
	Tags           StringArray `json:"tags" gorm:"type:jsonb"`
	Status         string      `json:"status" gorm:"size:16;not null;default:'draft'"`
	CurrentVersion int         `json:"current_version" gorm:"not null;default:1"`
	IsLocked       bool        `json:"is_locked" gorm:"not null;default:false"`
	LockOwner      string      `json:"lock_owner" gorm:"size:64"`
	FavoriteBy     StringArray `json:"favorite_by" gorm:"type:jsonb"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	// 关联
	Versions []DocumentVersion `json:"versions,omitempty" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

func (Document) TableName() string {
	return "documents"
}

// DocumentVersion 文档版本，创建后不可变
// 版本号在同一文档内从1开始连续递增，无空洞无重复。
type DocumentVersion struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	DocumentID    string    `json:"document_id" gorm:"size:32;not null;uniqueIndex:uniq_document_version,priority:1"`
	VersionNumber int       `json:"version_number" gorm:"not null;uniqueIndex:uniq_document_version,priority:2"`
	Filename      string    `json:"filename" gorm:"size:256;not null"`
	StorageKey    string    `json:"storage_key" gorm:"size:512;not null"`
	MimeType      string    `json:"mime_type" gorm:"size:128"`
	Size          int64     `json:"size"`
	Checksum      string    `json:"checksum" gorm:"size:128"`
	CreatedBy     string    `json:"created_by" gorm:"size:64;not null"`
	CreatedAt     time.Time `json:"created_at"`
}

func (DocumentVersion) TableName() string {
	return "document_versions"
}
