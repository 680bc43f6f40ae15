package handler

import (
	"net/url"
	"time"

	"github.com/bitfantasy/muse/internal/content/service"
	"github.com/gin-gonic/gin"
)

// AssetHandler 素材上传与下载接口
type AssetHandler struct {
	svc *service.AssetService
}

// NewAssetHandler 创建素材处理器
func NewAssetHandler(svc *service.AssetService) *AssetHandler {
	return &AssetHandler{svc: svc}
}

// Upload POST /api/v1/assets (multipart)
func (h *AssetHandler) Upload(c *gin.Context) {
	if !h.svc.Enabled() {
		InternalError(c, "对象存储未配置，素材上传不可用")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件: "+err.Error())
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	asset, err := h.svc.Upload(c.Request.Context(),
		sanitizeFilename(fileHeader.Filename), contentType, fileHeader.Size, file, GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, asset)
}

// Download GET /api/v1/assets/:id/url
func (h *AssetHandler) Download(c *gin.Context) {
	downloadURL, err := h.svc.PresignedURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"url": downloadURL, "expires_in": int(time.Hour.Seconds())})
}

// Get GET /api/v1/assets/:id
func (h *AssetHandler) Get(c *gin.Context) {
	asset, err := h.svc.GetAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, asset)
}

// ExportHandler 报表导出接口
type ExportHandler struct {
	svc *service.ExportService
}

// NewExportHandler 创建导出处理器
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// WorkflowReport GET /api/v1/workflows/:id/export
func (h *ExportHandler) WorkflowReport(c *gin.Context) {
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = &t
		}
	}

	f, filename, err := h.svc.ExportWorkflowReport(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+url.PathEscape(filename)+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
