package entity

import (
	"time"
)

// 在线状态常量
const (
	PresenceStatusViewing = "viewing"
	PresenceStatusEditing = "editing"
	PresenceStatusIdle    = "idle"
)

// PresenceSession 文档协作会话
// 同一 (document_id, user_id) 任意时刻最多一条 is_active=true 的记录，
// 由 join 的 find-or-update-else-create 加部分唯一索引共同保证。
type PresenceSession struct {
	ID           string      `json:"id" gorm:"primaryKey;size:32"`
	DocumentID   string      `json:"document_id" gorm:"size:32;not null;index"`
	UserID       string      `json:"user_id" gorm:"size:64;not null"`
	UserName     string      `json:"user_name" gorm:"size:128"`
	Status       string      `json:"status" gorm:"size:16;not null;default:'viewing'"`
	DeviceInfo   string      `json:"device_info" gorm:"size:256"`
	Capabilities StringArray `json:"capabilities" gorm:"type:jsonb"`
	StartedAt    time.Time   `json:"started_at"`
	LastSeenAt   time.Time   `json:"last_seen_at" gorm:"index"`
	IsActive     bool        `json:"is_active" gorm:"not null;default:true"`
}

func (PresenceSession) TableName() string {
	return "presence_sessions"
}
