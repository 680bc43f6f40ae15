package handler

import (
	"strconv"
	"strings"

	"github.com/bitfantasy/muse/internal/content/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Auth        *AuthHandler
	User        *UserHandler
	Content     *ContentHandler
	Workflow    *WorkflowHandler
	WorkflowDef *WorkflowDefHandler
	Routing     *RoutingHandler
	Export      *ExportHandler
	Asset       *AssetHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Auth:        NewAuthHandler(svc.Auth),
		User:        NewUserHandler(svc.User),
		Content:     NewContentHandler(svc.Content),
		Workflow:    NewWorkflowHandler(svc.Workflow),
		WorkflowDef: NewWorkflowDefHandler(svc.WorkflowDef),
		Routing:     NewRoutingHandler(svc.Routing),
		Export:      NewExportHandler(svc.Export),
		Asset:       NewAssetHandler(svc.Asset),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// respondError 业务错误分类映射为HTTP响应
// 预期失败（不存在/无权限/校验/冲突）带业务错误码返回，意外错误归为500
func respondError(c *gin.Context, err error) {
	switch {
	case service.IsNotFound(err):
		c.JSON(404, Response{Code: 40400, Message: withCode(err)})
	case service.IsForbidden(err):
		c.JSON(403, Response{Code: 40300, Message: withCode(err)})
	case service.IsValidation(err):
		c.JSON(400, Response{Code: 40000, Message: withCode(err)})
	case service.IsConflict(err):
		c.JSON(409, Response{Code: 40900, Message: withCode(err)})
	default:
		c.JSON(500, Response{Code: 50000, Message: err.Error()})
	}
}

func withCode(err error) string {
	code := service.ErrorCode(err)
	if code == "" {
		return err.Error()
	}
	return code + ": " + err.Error()
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// sanitizeFilename 去掉文件名里的路径分隔符
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, "\\", "_")
}
