package handler

import (
	"github.com/bitfantasy/muse/internal/content/service"
	"github.com/gin-gonic/gin"
)

// ContentHandler 内容接口
type ContentHandler struct {
	svc *service.ContentService
}

// NewContentHandler 创建内容处理器
func NewContentHandler(svc *service.ContentService) *ContentHandler {
	return &ContentHandler{svc: svc}
}

// Create POST /api/v1/contents
func (h *ContentHandler) Create(c *gin.Context) {
	var req service.CreateContentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	content, err := h.svc.CreateContent(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, content)
}

// Get GET /api/v1/contents/:id
func (h *ContentHandler) Get(c *gin.Context) {
	content, err := h.svc.GetContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, content)
}

// Update PUT /api/v1/contents/:id
func (h *ContentHandler) Update(c *gin.Context) {
	var req service.UpdateContentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	content, err := h.svc.UpdateContent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, content)
}

// List GET /api/v1/contents
func (h *ContentHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]interface{}{
		"status":       c.Query("status"),
		"content_type": c.Query("content_type"),
		"channel":      c.Query("channel"),
		"created_by":   c.Query("created_by"),
		"keyword":      c.Query("keyword"),
	}
	contents, total, err := h.svc.ListContents(c.Request.Context(), filters, page, pageSize)
	if err != nil {
		InternalError(c, "获取内容列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": contents,
		"pagination": Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages(total, pageSize),
		},
	})
}

// actionReq 状态转换参数
type actionReq struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

// ExecuteAction POST /api/v1/contents/:id/actions
func (h *ContentHandler) ExecuteAction(c *gin.Context) {
	var req actionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	content, err := h.svc.ExecuteAction(c.Request.Context(), c.Param("id"), GetUserID(c), req.Action, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, content)
}

// AvailableActions GET /api/v1/contents/:id/actions
func (h *ContentHandler) AvailableActions(c *gin.Context) {
	transitions, err := h.svc.AvailableActions(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	actions := make([]gin.H, 0, len(transitions))
	for _, t := range transitions {
		actions = append(actions, gin.H{
			"action":          t.Action,
			"to":              t.To,
			"require_comment": t.RequireComment,
		})
	}
	Success(c, gin.H{"items": actions})
}

// BeginGeneration POST /api/v1/contents/:id/generation/start
func (h *ContentHandler) BeginGeneration(c *gin.Context) {
	if err := h.svc.BeginGeneration(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	Success(c, nil)
}

// generationResultReq 生成结果参数
type generationResultReq struct {
	Body string `json:"body" binding:"required"`
}

// CompleteGeneration POST /api/v1/contents/:id/generation/complete
func (h *ContentHandler) CompleteGeneration(c *gin.Context) {
	var req generationResultReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.CompleteGeneration(c.Request.Context(), c.Param("id"), req.Body); err != nil {
		respondError(c, err)
		return
	}
	Success(c, nil)
}

// Logs GET /api/v1/contents/:id/logs
func (h *ContentHandler) Logs(c *gin.Context) {
	logs, err := h.svc.GetContentLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取操作日志失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": logs})
}
