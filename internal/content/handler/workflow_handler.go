package handler

import (
	"time"

	"github.com/bitfantasy/muse/internal/content/service"
	"github.com/gin-gonic/gin"
)

// WorkflowHandler 审批执行接口
type WorkflowHandler struct {
	svc *service.WorkflowService
}

// NewWorkflowHandler 创建审批执行处理器
func NewWorkflowHandler(svc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// Start POST /api/v1/approval-requests
func (h *WorkflowHandler) Start(c *gin.Context) {
	var req service.StartWorkflowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	request, err := h.svc.StartWorkflow(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, request)
}

// ProcessAction POST /api/v1/approval-requests/:id/actions
func (h *WorkflowHandler) ProcessAction(c *gin.Context) {
	var req service.ProcessActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	request, err := h.svc.ProcessApprovalAction(c.Request.Context(), c.Param("id"), GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, request)
}

// cancelReq 取消参数
type cancelReq struct {
	Reason string `json:"reason"`
}

// Cancel POST /api/v1/approval-requests/:id/cancel
func (h *WorkflowHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	request, err := h.svc.CancelWorkflow(c.Request.Context(), c.Param("id"), GetUserID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, request)
}

// Get GET /api/v1/approval-requests/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	request, err := h.svc.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, request)
}

// Status GET /api/v1/approval-requests/:id/status
func (h *WorkflowHandler) Status(c *gin.Context) {
	status, err := h.svc.GetWorkflowStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, status)
}

// List GET /api/v1/approval-requests
func (h *WorkflowHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]interface{}{
		"status":       c.Query("status"),
		"workflow_id":  c.Query("workflow_id"),
		"target_id":    c.Query("target_id"),
		"requester_id": c.Query("requester_id"),
	}
	requests, total, err := h.svc.ListRequests(c.Request.Context(), filters, page, pageSize)
	if err != nil {
		InternalError(c, "获取审批请求列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": requests,
		"pagination": Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages(total, pageSize),
		},
	})
}

// Metrics GET /api/v1/workflows/:id/metrics?from=&to=
func (h *WorkflowHandler) Metrics(c *gin.Context) {
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
	metrics, err := h.svc.GetWorkflowMetrics(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, metrics)
}

// WorkflowDefHandler 流程定义接口
type WorkflowDefHandler struct {
	svc *service.WorkflowDefinitionService
}

// NewWorkflowDefHandler 创建流程定义处理器
func NewWorkflowDefHandler(svc *service.WorkflowDefinitionService) *WorkflowDefHandler {
	return &WorkflowDefHandler{svc: svc}
}

// Create POST /api/v1/workflows
func (h *WorkflowDefHandler) Create(c *gin.Context) {
	var req service.CreateWorkflowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	workflow, err := h.svc.CreateWorkflow(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, workflow)
}

// Update PUT /api/v1/workflows/:id
func (h *WorkflowDefHandler) Update(c *gin.Context) {
	var req service.CreateWorkflowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	workflow, err := h.svc.UpdateWorkflow(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, workflow)
}

// activeReq 启用状态参数
type activeReq struct {
	IsActive bool `json:"is_active"`
}

// SetActive PUT /api/v1/workflows/:id/active
func (h *WorkflowDefHandler) SetActive(c *gin.Context) {
	var req activeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.SetWorkflowActive(c.Request.Context(), c.Param("id"), req.IsActive); err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"is_active": req.IsActive})
}

// Get GET /api/v1/workflows/:id
func (h *WorkflowDefHandler) Get(c *gin.Context) {
	workflow, err := h.svc.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, workflow)
}

// List GET /api/v1/workflows
func (h *WorkflowDefHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	onlyActive := c.Query("active") == "true"
	workflows, total, err := h.svc.ListWorkflows(c.Request.Context(), onlyActive, page, pageSize)
	if err != nil {
		InternalError(c, "获取流程列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": workflows,
		"pagination": Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages(total, pageSize),
		},
	})
}
