// Package fanout 承载核心状态变更提交后的附属副作用：
// 审计记录、实时广播、消息发布。三者都是 fire-and-forget，
// 失败只记日志，绝不回滚或失败主操作。
package fanout

import (
	"context"

	"go.uber.org/zap"
)

// 实时频道常量
const (
	ChannelDocumentUpdated      = "documents.updated"
	ChannelDocumentVersionAdded = "documents.version.added"
	ChannelPresenceUpdated      = "documents.presence.updated"
	ChannelWorkflowUpdated      = "workflows.updated"
	ChannelCommentAdded         = "documents.comment.added"
)

// AuditEntry 审计条目
type AuditEntry struct {
	EntityType  string
	EntityID    string
	Action      string
	PerformedBy string
	Metadata    map[string]interface{}
}

// Auditor 审计记录器
type Auditor interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Broadcaster 实时广播器
type Broadcaster interface {
	Broadcast(channel string, payload interface{})
}

// Publisher 消息发布器
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// Fanout 副作用集合。任一成员为nil时对应副作用被跳过，
// 零值可直接用于测试。
type Fanout struct {
	auditor     Auditor
	broadcaster Broadcaster
	publisher   Publisher
	logger      *zap.Logger
}

// New 创建副作用集合
func New(auditor Auditor, broadcaster Broadcaster, publisher Publisher, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		auditor:     auditor,
		broadcaster: broadcaster,
		publisher:   publisher,
		logger:      logger,
	}
}

// Audit 记录审计，失败只记日志
func (f *Fanout) Audit(ctx context.Context, entry AuditEntry) {
	if f == nil || f.auditor == nil {
		return
	}
	if err := f.auditor.Record(ctx, entry); err != nil {
		f.logger.Warn("audit record failed",
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

// Broadcast 广播实时事件
func (f *Fanout) Broadcast(channel string, payload interface{}) {
	if f == nil || f.broadcaster == nil {
		return
	}
	f.broadcaster.Broadcast(channel, payload)
}

// Publish 发布队列消息，失败只记日志
func (f *Fanout) Publish(ctx context.Context, routingKey string, payload interface{}) {
	if f == nil || f.publisher == nil {
		return
	}
	if err := f.publisher.Publish(ctx, routingKey, payload); err != nil {
		f.logger.Warn("message publish failed",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
