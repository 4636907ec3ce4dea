package fanout

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/bitfantasy/docvault/internal/docvault/sse"
)

// SSEBroadcaster 把实时事件推给SSE Hub的所有连接
type SSEBroadcaster struct {
	hub    *sse.Hub
	logger *zap.Logger
}

// NewSSEBroadcaster 创建SSE广播器
func NewSSEBroadcaster(hub *sse.Hub, logger *zap.Logger) *SSEBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SSEBroadcaster{hub: hub, logger: logger}
}

func (b *SSEBroadcaster) Broadcast(channel string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("broadcast payload marshal failed", zap.String("channel", channel), zap.Error(err))
		return
	}
	b.hub.Broadcast(sse.Event{
		EventType: channel,
		Data:      string(data),
	})
}
