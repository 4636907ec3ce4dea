package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/docvault/internal/docvault/service"
)

// PresenceHandler 在线状态处理器
type PresenceHandler struct {
	svc *service.PresenceService
}

// NewPresenceHandler 创建在线状态处理器
func NewPresenceHandler(svc *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{svc: svc}
}

// Join 加入文档在线会话
// POST /api/v1/documents/:id/presence
func (h *PresenceHandler) Join(c *gin.Context) {
	var req service.JoinPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.DocumentID = c.Param("id")
	if req.UserName == "" {
		req.UserName = GetUserName(c)
	}

	session, err := h.svc.Join(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, session)
}

// List 列出文档上的活跃会话
// GET /api/v1/documents/:id/presence
func (h *PresenceHandler) List(c *gin.Context) {
	sessions, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": sessions})
}

// SetStatus 更新当前用户在文档上的状态
// PUT /api/v1/documents/:id/presence/status
func (h *PresenceHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	session, err := h.svc.SetStatus(c.Request.Context(), c.Param("id"), GetUserID(c), req.Status)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, session)
}

// Heartbeat 会话心跳续期
// PUT /api/v1/presence/:sessionId/heartbeat
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	var req service.HeartbeatRequest
	// body可省略，纯续期
	c.ShouldBindJSON(&req)

	session, err := h.svc.Heartbeat(c.Request.Context(), c.Param("sessionId"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, session)
}

// Leave 离开会话，幂等
// DELETE /api/v1/presence/:sessionId
func (h *PresenceHandler) Leave(c *gin.Context) {
	if err := h.svc.Leave(c.Request.Context(), c.Param("sessionId")); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"left": true})
}
