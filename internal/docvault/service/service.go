package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/bitfantasy/docvault/internal/docvault/fanout"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
	"github.com/bitfantasy/docvault/internal/docvault/storage"
)

// Services 服务集合
type Services struct {
	Document      *DocumentService
	Workflow      *WorkflowService
	Presence      *PresenceService
	Upload        *UploadService
	Collaboration *CollaborationService
}

// Options 服务装配参数
type Options struct {
	UploadTmpDir     string
	UploadSessionTTL time.Duration
	PresenceWindow   time.Duration
}

// NewServices 创建所有服务
func NewServices(repos *repository.Repositories, blob storage.BlobStore, fan *fanout.Fanout, opts Options, logger *zap.Logger) *Services {
	document := NewDocumentService(repos.Document, blob, fan, logger)
	return &Services{
		Document:      document,
		Workflow:      NewWorkflowService(repos.Workflow, fan, logger),
		Presence:      NewPresenceService(repos.Presence, fan, opts.PresenceWindow, logger),
		Upload:        NewUploadService(repos.Upload, document, blob, opts.UploadTmpDir, opts.UploadSessionTTL, logger),
		Collaboration: NewCollaborationService(repos.Comment, repos.Document, fan, logger),
	}
}
