package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/docvault/internal/docvault/service"
)

// CollaborationHandler 文档评论处理器
type CollaborationHandler struct {
	svc *service.CollaborationService
}

// NewCollaborationHandler 创建协作处理器
func NewCollaborationHandler(svc *service.CollaborationService) *CollaborationHandler {
	return &CollaborationHandler{svc: svc}
}

// AddComment 添加评论
// POST /api/v1/documents/:id/comments
func (h *CollaborationHandler) AddComment(c *gin.Context) {
	var req service.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.DocumentID = c.Param("id")
	if req.AuthorName == "" {
		req.AuthorName = GetUserName(c)
	}

	comment, err := h.svc.AddComment(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, comment)
}

// ListComments 列出文档评论
// GET /api/v1/documents/:id/comments
func (h *CollaborationHandler) ListComments(c *gin.Context) {
	comments, err := h.svc.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": comments})
}
