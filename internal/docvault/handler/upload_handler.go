package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/docvault/internal/docvault/service"
)

// UploadHandler 分片上传处理器
type UploadHandler struct {
	svc *service.UploadService
}

// NewUploadHandler 创建分片上传处理器
func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// Init 初始化上传会话
// POST /api/v1/uploads
func (h *UploadHandler) Init(c *gin.Context) {
	var req service.InitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	session, err := h.svc.Init(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, session)
}

// Get 查询上传会话进度
// GET /api/v1/uploads/:id
func (h *UploadHandler) Get(c *gin.Context) {
	session, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{
		"session":         session,
		"expected_chunks": session.ExpectedChunks(),
	})
}

// PutChunk 接收一个分片
// PUT /api/v1/uploads/:id/chunks/:number
func (h *UploadHandler) PutChunk(c *gin.Context) {
	chunkNumber, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		BadRequest(c, "分片编号格式错误")
		return
	}

	// multipart或原始body都支持
	var body io.Reader = c.Request.Body
	if fileHeader, err := c.FormFile("chunk"); err == nil {
		src, err := fileHeader.Open()
		if err != nil {
			InternalError(c, "读取分片失败: "+err.Error())
			return
		}
		defer src.Close()
		body = src
	}

	session, err := h.svc.PutChunk(c.Request.Context(), c.Param("id"), chunkNumber, body)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, session)
}

// Finalize 完成上传并创建文档
// POST /api/v1/uploads/:id/finalize
func (h *UploadHandler) Finalize(c *gin.Context) {
	var req struct {
		Checksum string `json:"checksum"`
	}
	// body可省略
	c.ShouldBindJSON(&req)

	doc, err := h.svc.Finalize(c.Request.Context(), c.Param("id"), GetUserID(c), req.Checksum)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, doc)
}

// Abort 终止上传会话，幂等
// DELETE /api/v1/uploads/:id
func (h *UploadHandler) Abort(c *gin.Context) {
	if err := h.svc.Abort(c.Request.Context(), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"aborted": true})
}
