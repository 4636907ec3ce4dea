package repository

import (
	"gorm.io/gorm"
)

// Repositories 仓库集合
type Repositories struct {
	Document *DocumentRepository
	Workflow *WorkflowRepository
	Presence *PresenceRepository
	Upload   *UploadRepository
	Comment  *CommentRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Document: NewDocumentRepository(db),
		Workflow: NewWorkflowRepository(db),
		Presence: NewPresenceRepository(db),
		Upload:   NewUploadRepository(db),
		Comment:  NewCommentRepository(db),
	}
}
