package handler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/docvault/internal/docvault/service"
)

// DocumentHandler 文档处理器
type DocumentHandler struct {
	svc *service.DocumentService
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Create 创建文档（内容已在对象存储中，引用storage_key）
// POST /api/v1/documents
func (h *DocumentHandler) Create(c *gin.Context) {
	var req service.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	doc, err := h.svc.Create(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, doc)
}

// Upload 一步上传：multipart文件先写对象存储再建文档
// POST /api/v1/documents/upload
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "没有上传文件")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	storageKey, err := h.svc.PutBlob(c.Request.Context(), fileHeader.Filename, src, fileHeader.Size, contentType)
	if err != nil {
		InternalError(c, "保存文件失败: "+err.Error())
		return
	}

	req := service.CreateDocumentRequest{
		Title:      c.PostForm("title"),
		Type:       c.PostForm("type"),
		Category:   c.PostForm("category"),
		Owner:      c.PostForm("owner"),
		Department: c.PostForm("department"),
		Status:     c.PostForm("status"),
		Filename:   fileHeader.Filename,
		StorageKey: storageKey,
		MimeType:   contentType,
		Size:       fileHeader.Size,
		Checksum:   c.PostForm("checksum"),
	}
	if tags := c.PostForm("tags"); tags != "" {
		req.Tags = strings.Split(tags, ",")
	}

	doc, err := h.svc.Create(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, doc)
}

// List 获取文档列表
// GET /api/v1/documents?type=&status=&owner=&category=&keyword=&page=&page_size=
func (h *DocumentHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)

	filters := map[string]interface{}{}
	for _, key := range []string{"type", "status", "owner", "category", "keyword"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}

	result, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, ListResponse{
		Items: result.Items,
		Pagination: &Pagination{
			Page:       result.Page,
			PageSize:   result.PageSize,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	})
}

// Get 获取文档详情（含版本链）
// GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

// AddVersion 追加新版本（multipart文件）
// POST /api/v1/documents/:id/versions
func (h *DocumentHandler) AddVersion(c *gin.Context) {
	id := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		// 无文件时按JSON处理，内容已在对象存储中
		var req service.AddVersionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "请求参数错误: "+err.Error())
			return
		}
		doc, err := h.svc.AddVersion(c.Request.Context(), id, &req, GetUserID(c))
		if err != nil {
			RespondError(c, err)
			return
		}
		Created(c, doc)
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	storageKey, err := h.svc.PutBlob(c.Request.Context(), fileHeader.Filename, src, fileHeader.Size, contentType)
	if err != nil {
		InternalError(c, "保存文件失败: "+err.Error())
		return
	}

	doc, err := h.svc.AddVersion(c.Request.Context(), id, &service.AddVersionRequest{
		Filename:   fileHeader.Filename,
		StorageKey: storageKey,
		MimeType:   contentType,
		Size:       fileHeader.Size,
		Checksum:   c.PostForm("checksum"),
	}, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, doc)
}

// GetVersion 获取指定版本元数据
// GET /api/v1/documents/:id/versions/:version
func (h *DocumentHandler) GetVersion(c *gin.Context) {
	versionNumber, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		BadRequest(c, "版本号格式错误")
		return
	}

	version, err := h.svc.GetVersion(c.Request.Context(), c.Param("id"), &versionNumber)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, version)
}

// Download 下载文档内容，默认当前版本
// GET /api/v1/documents/:id/download?version=N
func (h *DocumentHandler) Download(c *gin.Context) {
	var versionNumber *int
	if v := c.Query("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			BadRequest(c, "版本号格式错误")
			return
		}
		versionNumber = &n
	}

	reader, version, err := h.svc.Download(c.Request.Context(), c.Param("id"), versionNumber)
	if err != nil {
		RespondError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", version.Filename))
	contentType := version.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	if version.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(version.Size, 10))
	}
	io.Copy(c.Writer, reader)
}

// UpdateMetadata 部分更新元数据
// PATCH /api/v1/documents/:id
func (h *DocumentHandler) UpdateMetadata(c *gin.Context) {
	var req service.UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	doc, err := h.svc.UpdateMetadata(c.Request.Context(), c.Param("id"), &req, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

// Lock 获取编辑锁
// POST /api/v1/documents/:id/lock
func (h *DocumentHandler) Lock(c *gin.Context) {
	var req struct {
		Force bool `json:"force"`
	}
	// body可省略
	c.ShouldBindJSON(&req)

	doc, err := h.svc.Lock(c.Request.Context(), c.Param("id"), GetUserID(c), req.Force)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

// Unlock 释放编辑锁
// DELETE /api/v1/documents/:id/lock
func (h *DocumentHandler) Unlock(c *gin.Context) {
	doc, err := h.svc.Unlock(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, doc)
}

// ToggleFavorite 收藏/取消收藏
// POST /api/v1/documents/:id/favorite
func (h *DocumentHandler) ToggleFavorite(c *gin.Context) {
	doc, favorited, err := h.svc.ToggleFavorite(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"document": doc, "favorited": favorited})
}
