package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/bitfantasy/muse/internal/content/entity"
	"github.com/bitfantasy/muse/internal/content/repository"
	"github.com/bitfantasy/muse/pkg/metrics"
	"github.com/google/uuid"
)

// 无指标时的保守估计
const (
	defaultCandidateHours = 24.0
	defaultOverallHours   = 48.0
)

// 阶段未声明审批角色时的默认角色集
var defaultApproverRoles = []string{"reviewer", "approver"}

// RoutingService 审批路由服务
// 按优先级求值路由规则，产出候选审批人及时间/置信度估计；
// 路由永远不阻塞工作流推进，任何意外失败都回落到阶段静态审批人
type RoutingService struct {
	repos *repository.Repositories
	cache *MetricsCache
}

// NewRoutingService 创建路由服务
func NewRoutingService(repos *repository.Repositories, cache *MetricsCache) *RoutingService {
	return &RoutingService{repos: repos, cache: cache}
}

// RoutingContext 一次路由求值的输入
type RoutingContext struct {
	Workflow      *entity.ApprovalWorkflow
	Stage         *entity.ApprovalStage
	RequesterRole string
	ContentType   string
	Budget        float64
	UrgencyLevel  string
	Team          string
}

// RoutingDecision 路由结果
type RoutingDecision struct {
	ShouldRoute     bool     `json:"should_route"`
	TargetApprovers []string `json:"target_approvers"`
	EstimatedTime   float64  `json:"estimated_time"` // 小时
	Confidence      float64  `json:"confidence"`
	Reasoning       []string `json:"reasoning"`
}

// RouteApproval 为阶段选择审批人
func (s *RoutingService) RouteApproval(ctx context.Context, rctx RoutingContext) (decision *RoutingDecision) {
	start := time.Now()
	defer func() { metrics.ObserveRoutingDecision(time.Since(start)) }()

	// 路由失败不允许上抛，回落到静态审批人
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[RoutingService] 路由计算异常，使用静态审批人回落: %v", r)
			metrics.RoutingFallback()
			decision = s.fallbackDecision(ctx, rctx, fmt.Sprintf("路由异常回落: %v", r))
		}
	}()

	if rctx.Stage == nil {
		return s.fallbackDecision(ctx, rctx, "缺少阶段上下文")
	}

	reasoning := []string{}

	// 1. 候选团队成员，为未缓存者播种默认指标
	members, err := s.repos.User.TeamMembers(ctx, rctx.Team)
	if err != nil {
		log.Printf("[RoutingService] 查询团队成员失败: %v", err)
		members = nil
	}
	s.seedMetrics(ctx, members)

	// 2. 选出命中的启用规则（优先级升序）
	rules, err := s.repos.RoutingRule.ListActive(ctx)
	if err != nil {
		log.Printf("[RoutingService] 查询路由规则失败: %v", err)
		rules = nil
	}
	var matched []entity.RoutingRule
	for _, rule := range rules {
		if s.ruleMatches(rule, rctx) {
			matched = append(matched, rule)
		}
	}

	// 3. 累加所有命中规则的动作产出，不短路
	var approvers []string
	if len(matched) > 0 {
		for _, rule := range matched {
			reasoning = append(reasoning, fmt.Sprintf("命中规则「%s」(priority=%d)", rule.Name, rule.Priority))
			for _, action := range rule.Actions {
				approvers = append(approvers, s.applyAction(ctx, action, rctx, members)...)
			}
		}
		approvers = dedupe(approvers)
	}
	if len(approvers) == 0 {
		approvers = s.staticApprovers(rctx.Stage, members)
		if len(matched) == 0 {
			reasoning = append(reasoning, "无命中规则，使用阶段静态审批人")
		} else {
			reasoning = append(reasoning, "规则未产出审批人，使用阶段静态审批人")
		}
	}

	// 4. 排除离线者，按响应性加权可靠度降序排序
	approvers = s.optimizeSelection(ctx, approvers)
	if len(approvers) == 0 {
		return s.fallbackDecision(ctx, rctx, "优选后无可用审批人")
	}

	estimated := s.estimateTime(ctx, rctx, approvers)
	confidence := s.confidence(ctx, rctx, approvers)
	reasoning = append(reasoning, fmt.Sprintf("选出 %d 名审批人，预计 %.1f 小时", len(approvers), estimated))

	return &RoutingDecision{
		ShouldRoute:     true,
		TargetApprovers: approvers,
		EstimatedTime:   estimated,
		Confidence:      confidence,
		Reasoning:       reasoning,
	}
}

// fallbackDecision 静态审批人回落，固定置信度 0.5
func (s *RoutingService) fallbackDecision(ctx context.Context, rctx RoutingContext, note string) *RoutingDecision {
	var approvers []string
	if rctx.Stage != nil {
		members, err := s.repos.User.TeamMembers(ctx, rctx.Team)
		if err != nil {
			members = nil
		}
		approvers = s.staticApprovers(rctx.Stage, members)
	}
	return &RoutingDecision{
		ShouldRoute:     len(approvers) > 0,
		TargetApprovers: approvers,
		EstimatedTime:   defaultOverallHours,
		Confidence:      0.5,
		Reasoning:       []string{note},
	}
}

// staticApprovers 阶段静态审批人：显式ID优先，其次按角色匹配团队成员
func (s *RoutingService) staticApprovers(stage *entity.ApprovalStage, members []entity.User) []string {
	if len(stage.Approvers) > 0 {
		return dedupe(stage.Approvers)
	}
	roles := []string(stage.ApproverRoles)
	if len(roles) == 0 {
		roles = defaultApproverRoles
	}
	var out []string
	for _, m := range members {
		for _, role := range roles {
			if m.Role == role {
				out = append(out, m.ID)
				break
			}
		}
	}
	return dedupe(out)
}

// seedMetrics 为未缓存的候选人播种默认指标，实时工作量尽力回填
func (s *RoutingService) seedMetrics(ctx context.Context, members []entity.User) {
	var missing []string
	for _, m := range members {
		if _, ok := s.cache.Get(ctx, m.ID); !ok {
			missing = append(missing, m.ID)
		}
	}
	if len(missing) == 0 {
		return
	}

	workloads, err := s.repos.RoutingRule.CountPendingByApprover(ctx, missing)
	if err != nil {
		log.Printf("[RoutingService] 查询审批人工作量失败: %v", err)
		workloads = map[string]int{}
	}
	byID := make(map[string]entity.User, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	for _, uid := range missing {
		metrics := entity.DefaultApproverMetrics(uid)
		metrics.CurrentWorkload = workloads[uid]
		if u, ok := byID[uid]; ok {
			if u.Status != entity.UserStatusActive {
				metrics.Availability = entity.AvailabilityOffline
			}
			if u.LastActiveAt != nil {
				metrics.LastActiveAt = *u.LastActiveAt
				if time.Since(*u.LastActiveAt) > 7*24*time.Hour {
					metrics.Availability = entity.AvailabilityAway
				}
			}
		}
		s.cache.Set(ctx, metrics)
	}
}

// ruleMatches 规则的全部条件按 AND 求值
func (s *RoutingService) ruleMatches(rule entity.RoutingRule, rctx RoutingContext) bool {
	for _, cond := range rule.Conditions {
		if !s.evaluateCondition(cond, rctx) {
			return false
		}
	}
	return len(rule.Conditions) > 0
}

// evaluateCondition 单条件求值
// 条件类型是封闭枚举，新增类型必须在此登记，未知类型一律不命中
func (s *RoutingService) evaluateCondition(cond entity.ApprovalCondition, rctx RoutingContext) bool {
	switch cond.Type {
	case entity.ConditionUserRole:
		switch cond.Operator {
		case entity.OpEquals:
			return rctx.RequesterRole == cond.Value
		case entity.OpNotEquals:
			return rctx.RequesterRole != cond.Value
		}
		return false

	case entity.ConditionContentType:
		switch cond.Operator {
		case entity.OpEquals:
			return rctx.ContentType == cond.Value
		case entity.OpNotEquals:
			return rctx.ContentType != cond.Value
		case entity.OpContains:
			return cond.Value != "" && strings.Contains(rctx.ContentType, cond.Value)
		}
		return false

	case entity.ConditionBudgetThreshold:
		switch cond.Operator {
		case entity.OpGreaterThan:
			return rctx.Budget > cond.Threshold
		case entity.OpLessThan:
			return rctx.Budget < cond.Threshold
		case entity.OpEquals:
			return rctx.Budget == cond.Threshold
		}
		return false

	case entity.ConditionCustom:
		// 引擎内置 token
		switch cond.Value {
		case "urgent":
			return rctx.UrgencyLevel == "urgent"
		}
		return false
	}
	return false
}

// applyAction 单个路由动作求值
// 动作类型是封闭枚举，未知类型不产出任何审批人
func (s *RoutingService) applyAction(ctx context.Context, action entity.RoutingAction, rctx RoutingContext, members []entity.User) []string {
	switch action.Type {
	case entity.RouteAssignToUser:
		return action.UserIDs

	case entity.RouteAssignToRole:
		var out []string
		for _, m := range members {
			if !roleIn(m.Role, action.Roles) {
				continue
			}
			if action.MatchExpertise {
				if metrics, ok := s.cache.Get(ctx, m.ID); ok && !metrics.HasExpertise(rctx.ContentType) {
					continue
				}
			}
			out = append(out, m.ID)
		}
		return out

	case entity.RouteLoadBalance:
		// 在目标角色中取工作量最低且可用的一人，达到上限者直接排除
		best := ""
		bestLoad := -1
		for _, m := range members {
			if !roleIn(m.Role, action.Roles) {
				continue
			}
			metrics, ok := s.cache.Get(ctx, m.ID)
			if !ok {
				metrics = entity.DefaultApproverMetrics(m.ID)
			}
			if metrics.Availability != entity.AvailabilityAvailable {
				continue
			}
			if action.MaxWorkload > 0 && metrics.CurrentWorkload >= action.MaxWorkload {
				continue
			}
			if best == "" || metrics.CurrentWorkload < bestLoad {
				best = m.ID
				bestLoad = metrics.CurrentWorkload
			}
		}
		if best == "" {
			return nil
		}
		return []string{best}

	case entity.RouteParallelRoute:
		max := action.MaxParallel
		if max <= 0 {
			max = 3
		}
		var out []string
		for _, m := range members {
			if !roleIn(m.Role, action.Roles) {
				continue
			}
			metrics, ok := s.cache.Get(ctx, m.ID)
			if ok && metrics.Availability != entity.AvailabilityAvailable {
				continue
			}
			out = append(out, m.ID)
			if len(out) >= max {
				break
			}
		}
		return out

	case entity.RouteEscalate:
		// 升级不做任何过滤
		var out []string
		for _, m := range members {
			if roleIn(m.Role, action.Roles) {
				out = append(out, m.ID)
			}
		}
		return out
	}
	return nil
}

// optimizeSelection 排除离线者并按 score = (1/avgResponseTime)*approvalRate 降序
// 无缓存指标者排在最后但不排除
func (s *RoutingService) optimizeSelection(ctx context.Context, approvers []string) []string {
	type scored struct {
		id    string
		score float64
		known bool
	}
	var list []scored
	for _, uid := range approvers {
		metrics, ok := s.cache.Get(ctx, uid)
		if !ok {
			list = append(list, scored{id: uid, score: 0, known: false})
			continue
		}
		if metrics.Availability == entity.AvailabilityOffline {
			continue
		}
		score := 0.0
		if metrics.AverageResponseTime > 0 {
			score = (1 / metrics.AverageResponseTime) * metrics.ApprovalRate
		}
		list = append(list, scored{id: uid, score: score, known: true})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].known != list[j].known {
			return list[i].known
		}
		return list[i].score > list[j].score
	})
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.id)
	}
	return out
}

// estimateTime 并行取最慢者，串行取总和
func (s *RoutingService) estimateTime(ctx context.Context, rctx RoutingContext, approvers []string) float64 {
	parallel := rctx.Stage.ApproversRequired == 1 ||
		(rctx.Workflow != nil && rctx.Workflow.AllowParallelStages)

	total := 0.0
	max := 0.0
	counted := 0
	for _, uid := range approvers {
		metrics, ok := s.cache.Get(ctx, uid)
		hours := defaultCandidateHours
		if ok && metrics.AverageResponseTime > 0 {
			hours = metrics.AverageResponseTime
		} else if !ok {
			continue
		}
		counted++
		total += hours
		if hours > max {
			max = hours
		}
	}
	if counted == 0 {
		return defaultOverallHours
	}
	if parallel {
		return max
	}
	return total
}

// confidence 基线 0.5，可用比例最多加 0.3，专长匹配比例最多加 0.2
func (s *RoutingService) confidence(ctx context.Context, rctx RoutingContext, approvers []string) float64 {
	if len(approvers) == 0 {
		return 0.5
	}
	available := 0
	expert := 0
	for _, uid := range approvers {
		metrics, ok := s.cache.Get(ctx, uid)
		if !ok {
			continue
		}
		if metrics.Availability == entity.AvailabilityAvailable {
			available++
		}
		if metrics.HasExpertise(rctx.ContentType) {
			expert++
		}
	}
	n := float64(len(approvers))
	c := 0.5 + 0.3*(float64(available)/n) + 0.2*(float64(expert)/n)
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

// ---- 路由规则 CRUD ----

// CreateRuleReq 创建路由规则参数
type CreateRuleReq struct {
	Name        string                   `json:"name" binding:"required"`
	Description string                   `json:"description"`
	Priority    int                      `json:"priority"`
	Conditions  entity.ConditionList     `json:"conditions" binding:"required"`
	Actions     entity.RoutingActionList `json:"actions" binding:"required"`
}

// AddRoutingRule 新增路由规则
func (s *RoutingService) AddRoutingRule(ctx context.Context, req CreateRuleReq, createdBy string) (*entity.RoutingRule, error) {
	if len(req.Conditions) == 0 {
		return nil, NewValidation(CodeInvalidAction, "路由规则至少需要一个条件")
	}
	if len(req.Actions) == 0 {
		return nil, NewValidation(CodeInvalidAction, "路由规则至少需要一个动作")
	}
	if err := validateConditions(req.Conditions); err != nil {
		return nil, err
	}
	if err := validateActions(req.Actions); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == 0 {
		priority = 100
	}
	rule := &entity.RoutingRule{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Priority:    priority,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
		IsActive:    true,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.repos.RoutingRule.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("创建路由规则失败: %w", err)
	}
	return rule, nil
}

// UpdateRoutingRule 更新路由规则
func (s *RoutingService) UpdateRoutingRule(ctx context.Context, id string, req CreateRuleReq, isActive *bool) (*entity.RoutingRule, error) {
	rule, err := s.repos.RoutingRule.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, NewNotFound("路由规则", id)
		}
		return nil, err
	}

	if req.Name != "" {
		rule.Name = req.Name
	}
	rule.Description = req.Description
	if req.Priority > 0 {
		rule.Priority = req.Priority
	}
	if len(req.Conditions) > 0 {
		if err := validateConditions(req.Conditions); err != nil {
			return nil, err
		}
		rule.Conditions = req.Conditions
	}
	if len(req.Actions) > 0 {
		if err := validateActions(req.Actions); err != nil {
			return nil, err
		}
		rule.Actions = req.Actions
	}
	if isActive != nil {
		rule.IsActive = *isActive
	}
	rule.UpdatedAt = time.Now()

	if err := s.repos.RoutingRule.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("更新路由规则失败: %w", err)
	}
	return rule, nil
}

// DeleteRoutingRule 删除路由规则
func (s *RoutingService) DeleteRoutingRule(ctx context.Context, id string) error {
	if err := s.repos.RoutingRule.Delete(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return NewNotFound("路由规则", id)
		}
		return err
	}
	return nil
}

// GetRoutingRules 获取全部路由规则
func (s *RoutingService) GetRoutingRules(ctx context.Context) ([]entity.RoutingRule, error) {
	return s.repos.RoutingRule.List(ctx)
}

// validateConditions 条件类型/操作符必须在封闭枚举内
func validateConditions(conds entity.ConditionList) error {
	for _, c := range conds {
		switch c.Type {
		case entity.ConditionUserRole, entity.ConditionContentType,
			entity.ConditionBudgetThreshold, entity.ConditionCustom:
		default:
			return NewValidation(CodeInvalidAction, fmt.Sprintf("未知条件类型: %s", c.Type))
		}
		switch c.Operator {
		case entity.OpEquals, entity.OpNotEquals, entity.OpContains,
			entity.OpGreaterThan, entity.OpLessThan:
		default:
			return NewValidation(CodeInvalidAction, fmt.Sprintf("未知条件操作符: %s", c.Operator))
		}
	}
	return nil
}

// validateActions 动作类型必须在封闭枚举内
func validateActions(actions entity.RoutingActionList) error {
	for _, a := range actions {
		switch a.Type {
		case entity.RouteAssignToUser, entity.RouteAssignToRole,
			entity.RouteLoadBalance, entity.RouteParallelRoute, entity.RouteEscalate:
		default:
			return NewValidation(CodeInvalidAction, fmt.Sprintf("未知路由动作类型: %s", a.Type))
		}
	}
	return nil
}

func roleIn(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

