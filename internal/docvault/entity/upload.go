package entity

import (
	"time"
)

// UploadSession 分片上传会话
// 分片按1起编号写入暂存目录，finalize 时要求
// received_chunks 恰好等于 {1..ceil(total_size/chunk_size)}。
type UploadSession struct {
	ID             string      `json:"id" gorm:"primaryKey;size:32"`
	Title          string      `json:"title" gorm:"size:256;not null"`
	Type           string      `json:"type" gorm:"size:64;not null"`
	Category       string      `json:"category" gorm:"size:64"`
	Owner          string      `json:"owner" gorm:"size:64;not null"`
	Department     string      `json:"department" gorm:"size:64"`
	Tags           StringArray `json:"tags" gorm:"type:jsonb"`
	Status         string      `json:"status" gorm:"size:16;not null;default:'draft'"`
	Filename       string      `json:"filename" gorm:"size:256;not null"`
	MimeType       string      `json:"mime_type" gorm:"size:128"`
	TotalSize      int64       `json:"total_size" gorm:"not null"`
	ChunkSize      int64       `json:"chunk_size" gorm:"not null"`
	ReceivedChunks IntArray    `json:"received_chunks" gorm:"type:jsonb"`
	Checksum       string      `json:"checksum" gorm:"size:128"`
	TempDir        string      `json:"-" gorm:"size:512;not null"`
	CreatedBy      string      `json:"created_by" gorm:"size:64;not null"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (UploadSession) TableName() string {
	return "upload_sessions"
}

// ExpectedChunks 按总大小与分片大小计算应收分片数
func (s *UploadSession) ExpectedChunks() int {
	if s.ChunkSize <= 0 {
		return 0
	}
	return int((s.TotalSize + s.ChunkSize - 1) / s.ChunkSize)
}
