package handler

import (
	"github.com/bitfantasy/muse/internal/content/entity"
	"github.com/bitfantasy/muse/internal/content/service"
	"github.com/gin-gonic/gin"
)

// RoutingHandler 路由规则接口
type RoutingHandler struct {
	svc *service.RoutingService
}

// NewRoutingHandler 创建路由规则处理器
func NewRoutingHandler(svc *service.RoutingService) *RoutingHandler {
	return &RoutingHandler{svc: svc}
}

// List GET /api/v1/routing-rules
func (h *RoutingHandler) List(c *gin.Context) {
	rules, err := h.svc.GetRoutingRules(c.Request.Context())
	if err != nil {
		InternalError(c, "获取路由规则失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": rules})
}

// Create POST /api/v1/routing-rules
func (h *RoutingHandler) Create(c *gin.Context) {
	var req service.CreateRuleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	rule, err := h.svc.AddRoutingRule(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, rule)
}

// updateRuleReq 更新参数，全部可选
type updateRuleReq struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Priority    int                      `json:"priority"`
	Conditions  entity.ConditionList     `json:"conditions"`
	Actions     entity.RoutingActionList `json:"actions"`
	IsActive    *bool                    `json:"is_active"`
}

// Update PUT /api/v1/routing-rules/:id
func (h *RoutingHandler) Update(c *gin.Context) {
	var req updateRuleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	rule, err := h.svc.UpdateRoutingRule(c.Request.Context(), c.Param("id"), service.CreateRuleReq{
		Name:        req.Name,
		Description: req.Description,
		Priority:    req.Priority,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
	}, req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, rule)
}

// Delete DELETE /api/v1/routing-rules/:id
func (h *RoutingHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteRoutingRule(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	Success(c, nil)
}
