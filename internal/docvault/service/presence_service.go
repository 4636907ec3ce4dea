package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
	"github.com/bitfantasy/docvault/internal/docvault/fanout"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
)

// DefaultStaleWindow 无心跳判定离线的窗口
const DefaultStaleWindow = 2 * time.Minute

// PresenceService 在线状态服务。每次读写前先按窗口清除超时会话。
type PresenceService struct {
	repo   *repository.PresenceRepository
	fan    *fanout.Fanout
	window time.Duration
	logger *zap.Logger
}

// NewPresenceService 创建在线状态服务，staleWindow<=0时用默认窗口
func NewPresenceService(repo *repository.PresenceRepository, fan *fanout.Fanout, staleWindow time.Duration, logger *zap.Logger) *PresenceService {
	if staleWindow <= 0 {
		staleWindow = DefaultStaleWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceService{repo: repo, fan: fan, window: staleWindow, logger: logger}
}

// JoinPresenceRequest 加入文档在线会话请求
type JoinPresenceRequest struct {
	DocumentID   string   `json:"document_id"`
	UserName     string   `json:"user_name"`
	Status       string   `json:"status"`
	DeviceInfo   string   `json:"device_info"`
	Capabilities []string `json:"capabilities"`
}

// HeartbeatRequest 心跳请求，空字段不变
type HeartbeatRequest struct {
	Status       string   `json:"status"`
	UserName     string   `json:"user_name"`
	DeviceInfo   string   `json:"device_info"`
	Capabilities []string `json:"capabilities"`
}

func validPresenceStatus(status string) bool {
	switch status {
	case entity.PresenceStatusViewing, entity.PresenceStatusEditing, entity.PresenceStatusIdle:
		return true
	}
	return false
}

func (s *PresenceService) evictStale(ctx context.Context) {
	if err := s.repo.DeactivateStale(ctx, time.Now().Add(-s.window)); err != nil {
		s.logger.Warn("Failed to deactivate stale presence sessions", zap.Error(err))
	}
}

// Join 加入文档在线会话。同一用户在同一文档上只保留一个活跃会话：
// 已有则原地更新并续期，没有则新建。并发新建撞唯一索引时退回更新路径。
func (s *PresenceService) Join(ctx context.Context, req *JoinPresenceRequest, userID string) (*entity.PresenceSession, error) {
	if req.DocumentID == "" {
		return nil, errs.Validation("document id is required")
	}
	status := req.Status
	if status == "" {
		status = entity.PresenceStatusViewing
	}
	if !validPresenceStatus(status) {
		return nil, errs.Validation("invalid presence status: %s", status)
	}

	s.evictStale(ctx)

	session, err := s.joinOnce(ctx, req, userID, status)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		session, err = s.joinOnce(ctx, req, userID, status)
	}
	if err != nil {
		return nil, fmt.Errorf("join presence: %w", err)
	}

	s.broadcastPresence(ctx, req.DocumentID)
	return session, nil
}

func (s *PresenceService) joinOnce(ctx context.Context, req *JoinPresenceRequest, userID, status string) (*entity.PresenceSession, error) {
	now := time.Now()
	existing, err := s.repo.FindActive(ctx, req.DocumentID, userID)
	if err != nil && !errs.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		existing.UserName = req.UserName
		existing.Status = status
		existing.DeviceInfo = req.DeviceInfo
		existing.Capabilities = entity.StringArray(req.Capabilities)
		existing.LastSeenAt = now
		if err := s.repo.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	session := &entity.PresenceSession{
		ID:           uuid.New().String()[:32],
		DocumentID:   req.DocumentID,
		UserID:       userID,
		UserName:     req.UserName,
		Status:       status,
		DeviceInfo:   req.DeviceInfo,
		Capabilities: entity.StringArray(req.Capabilities),
		StartedAt:    now,
		LastSeenAt:   now,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Heartbeat 续期会话。超时被清除后的心跳返回NotFound，客户端需重新Join。
func (s *PresenceService) Heartbeat(ctx context.Context, sessionID string, req *HeartbeatRequest) (*entity.PresenceSession, error) {
	s.evictStale(ctx)

	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, errs.NotFound("presence session has expired")
	}

	if req.Status != "" {
		if !validPresenceStatus(req.Status) {
			return nil, errs.Validation("invalid presence status: %s", req.Status)
		}
		session.Status = req.Status
	}
	if req.UserName != "" {
		session.UserName = req.UserName
	}
	if req.DeviceInfo != "" {
		session.DeviceInfo = req.DeviceInfo
	}
	if req.Capabilities != nil {
		session.Capabilities = entity.StringArray(req.Capabilities)
	}
	session.LastSeenAt = time.Now()

	if err := s.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}

	s.broadcastPresence(ctx, session.DocumentID)
	return session, nil
}

// SetStatus 更新用户在文档上的状态
func (s *PresenceService) SetStatus(ctx context.Context, documentID, userID, status string) (*entity.PresenceSession, error) {
	if !validPresenceStatus(status) {
		return nil, errs.Validation("invalid presence status: %s", status)
	}

	s.evictStale(ctx)

	session, err := s.repo.FindActive(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}

	session.Status = status
	session.LastSeenAt = time.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("update presence status: %w", err)
	}

	s.broadcastPresence(ctx, documentID)
	return session, nil
}

// Leave 离开会话，幂等：会话不存在或已失效时直接成功
func (s *PresenceService) Leave(ctx context.Context, sessionID string) error {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !session.IsActive {
		return nil
	}

	session.IsActive = false
	session.LastSeenAt = time.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return fmt.Errorf("leave presence: %w", err)
	}

	s.broadcastPresence(ctx, session.DocumentID)
	return nil
}

// List 列出文档上的活跃会话，按最近心跳倒序
func (s *PresenceService) List(ctx context.Context, documentID string) ([]entity.PresenceSession, error) {
	s.evictStale(ctx)
	return s.repo.ListActive(ctx, documentID, time.Now().Add(-s.window))
}

func (s *PresenceService) broadcastPresence(ctx context.Context, documentID string) {
	sessions, err := s.repo.ListActive(ctx, documentID, time.Now().Add(-s.window))
	if err != nil {
		s.logger.Warn("Failed to load presence sessions for broadcast",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
		return
	}
	s.fan.Broadcast(fanout.ChannelPresenceUpdated, map[string]interface{}{
		"document_id": documentID,
		"sessions":    sessions,
	})
}
