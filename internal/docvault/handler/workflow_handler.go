package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/docvault/internal/docvault/service"
)

// WorkflowHandler 审批流处理器
type WorkflowHandler struct {
	svc *service.WorkflowService
}

// NewWorkflowHandler 创建审批流处理器
func NewWorkflowHandler(svc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// Create 创建审批流
// POST /api/v1/workflows
func (h *WorkflowHandler) Create(c *gin.Context) {
	var req service.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	wf, err := h.svc.Create(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, wf)
}

// List 获取审批流列表
// GET /api/v1/workflows?status=&document_id=&page=&page_size=
func (h *WorkflowHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)

	filters := map[string]interface{}{}
	if v := c.Query("status"); v != "" {
		filters["status"] = v
	}
	if v := c.Query("document_id"); v != "" {
		filters["document_id"] = v
	}

	workflows, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		RespondError(c, err)
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: workflows,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// Get 获取审批流详情
// GET /api/v1/workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	wf, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, wf)
}

// ListByDocument 按文档查审批流
// GET /api/v1/documents/:id/workflows
func (h *WorkflowHandler) ListByDocument(c *gin.Context) {
	workflows, err := h.svc.ListByDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": workflows})
}

// Advance 推进审批流（approve/reject/reassign）
// POST /api/v1/workflows/:id/advance
func (h *WorkflowHandler) Advance(c *gin.Context) {
	var req service.AdvanceWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	wf, err := h.svc.Advance(c.Request.Context(), c.Param("id"), &req, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, wf)
}
