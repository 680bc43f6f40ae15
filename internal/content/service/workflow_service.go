package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/bitfantasy/muse/internal/content/entity"
	"github.com/bitfantasy/muse/internal/content/repository"
	"github.com/bitfantasy/muse/internal/shared/notify"
	"github.com/bitfantasy/muse/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkflowService 审批工作流执行引擎
// 驱动请求沿阶段顺序推进：配额计数、条件跳过、升级、取消；
// 同一请求的写路径全部走行锁事务，并发决策由 STALE_STAGE 守卫拒绝
type WorkflowService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	routing  *RoutingService
	notifier *notify.Client
}

// NewWorkflowService 创建工作流服务
func NewWorkflowService(db *gorm.DB, repos *repository.Repositories, routing *RoutingService, notifier *notify.Client) *WorkflowService {
	return &WorkflowService{db: db, repos: repos, routing: routing, notifier: notifier}
}

// StartWorkflowReq 发起审批参数
type StartWorkflowReq struct {
	WorkflowID string     `json:"workflow_id" binding:"required"`
	TargetType string     `json:"target_type" binding:"required"`
	TargetID   string     `json:"target_id" binding:"required"`
	Notes      string     `json:"notes"`
	Priority   string     `json:"priority"`
	DueDate    *time.Time `json:"due_date"`
}

// StartWorkflow 发起审批请求
// 流程必须启用且至少有一个阶段；当前阶段定位到顺序最小的阶段
func (s *WorkflowService) StartWorkflow(ctx context.Context, req StartWorkflowReq, requesterID string) (*entity.ApprovalRequest, error) {
	workflow, err := s.repos.Workflow.FindByID(ctx, req.WorkflowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("审批流程", req.WorkflowID)
		}
		return nil, fmt.Errorf("加载审批流程失败: %w", err)
	}
	if !workflow.IsActive {
		return nil, NewValidation(CodeWorkflowInactive, "审批流程已停用")
	}
	if len(workflow.Stages) == 0 {
		return nil, NewValidation(CodeEmptyWorkflow, "审批流程没有任何阶段")
	}

	firstStage := workflow.Stages[0] // FindByID 已按 stage_order 升序

	priority := req.Priority
	if priority == "" {
		priority = entity.PriorityNormal
	}
	dueDate := req.DueDate
	if dueDate == nil && workflow.DefaultTimeoutHours > 0 {
		d := time.Now().Add(time.Duration(workflow.DefaultTimeoutHours) * time.Hour)
		dueDate = &d
	}

	stageID := firstStage.ID
	request := &entity.ApprovalRequest{
		ID:             uuid.New().String(),
		WorkflowID:     workflow.ID,
		TargetType:     req.TargetType,
		TargetID:       req.TargetID,
		RequesterID:    requesterID,
		CurrentStageID: &stageID,
		Status:         entity.RequestStatusPending,
		Priority:       priority,
		Notes:          req.Notes,
		DueDate:        dueDate,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := s.repos.Request.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("创建审批请求失败: %w", err)
	}
	metrics.WorkflowStarted(workflow.ID)

	// 路由首阶段审批人并发送进入通知
	rctx := s.buildRoutingContext(ctx, workflow, &firstStage, request)
	decision := s.routing.RouteApproval(ctx, rctx)
	log.Printf("[WorkflowService] 请求 %s 进入阶段「%s」，路由到 %d 名审批人 (confidence=%.2f)",
		request.ID, firstStage.Name, len(decision.TargetApprovers), decision.Confidence)

	s.dispatchEvents(request, []WorkflowEvent{{
		Type:         EventWorkflowStarted,
		RequestID:    request.ID,
		WorkflowName: workflow.Name,
		StageID:      firstStage.ID,
		StageName:    firstStage.Name,
		TargetType:   request.TargetType,
		TargetID:     request.TargetID,
		RequesterID:  request.RequesterID,
		Priority:     request.Priority,
		Recipients:   decision.TargetApprovers,
	}})

	return request, nil
}

// ProcessActionReq 审批动作参数
type ProcessActionReq struct {
	StageID  string          `json:"stage_id" binding:"required"`
	Action   string          `json:"action" binding:"required"`
	Comment  string          `json:"comment"`
	Metadata entity.Metadata `json:"metadata"`
}

// ProcessApprovalAction 处理一次审批决策
// stage_id 必须等于请求当前阶段，过期阶段的决策一律拒绝，绝不重新解释
func (s *WorkflowService) ProcessApprovalAction(ctx context.Context, requestID, approverID string, req ProcessActionReq) (*entity.ApprovalRequest, error) {
	switch req.Action {
	case entity.ApprovalActionApprove, entity.ApprovalActionReject,
		entity.ApprovalActionRequestChanges, entity.ApprovalActionDelegate,
		entity.ApprovalActionEscalate:
	case entity.ApprovalActionCancel:
		return nil, NewValidation(CodeInvalidAction, "取消请使用取消接口")
	default:
		return nil, NewValidation(CodeInvalidAction, fmt.Sprintf("未知审批动作: %s", req.Action))
	}

	if req.Action == entity.ApprovalActionDelegate {
		if _, ok := req.Metadata.DelegateTo(); !ok {
			return nil, NewValidation(CodeMissingDelegateTarget, "委托动作缺少目标用户 (metadata.delegate_to_id)")
		}
	}

	var request *entity.ApprovalRequest
	var events []WorkflowEvent

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		request, err = s.repos.Request.FindByIDForUpdate(tx, requestID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NewNotFound("审批请求", requestID)
			}
			return fmt.Errorf("加载审批请求失败: %w", err)
		}

		// 终态请求不可再变更
		if entity.IsTerminalStatus(request.Status) {
			return NewConflict(CodeRequestTerminal, fmt.Sprintf("审批请求已完结（状态: %s）", request.Status))
		}

		workflow, err := s.loadWorkflowTx(tx, request.WorkflowID)
		if err != nil {
			return err
		}
		stage := stageByID(workflow, req.StageID)
		if stage == nil {
			return NewStageNotFound(req.StageID)
		}

		// 冲突守卫：决策针对的阶段必须是提交时刻的当前阶段
		if request.CurrentStageID == nil || *request.CurrentStageID != req.StageID {
			return NewConflict(CodeStaleStage, "阶段已变更，请刷新后重新提交决策")
		}

		if err := s.authorizeApprover(tx, stage, approverID); err != nil {
			return err
		}

		// 追加动作记录
		action := &entity.ApprovalAction{
			ID:         uuid.New().String(),
			RequestID:  request.ID,
			StageID:    stage.ID,
			ApproverID: approverID,
			Action:     req.Action,
			Comment:    req.Comment,
			Metadata:   req.Metadata,
			CreatedAt:  time.Now(),
		}
		if err := tx.Create(action).Error; err != nil {
			return fmt.Errorf("记录审批动作失败: %w", err)
		}

		events, err = s.dispatchAction(ctx, tx, workflow, stage, request, action)
		if err != nil {
			return err
		}

		// 单次写回
		request.UpdatedAt = time.Now()
		if err := tx.Save(request).Error; err != nil {
			return fmt.Errorf("更新审批请求失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApprovalAction(req.Action)
	if entity.IsTerminalStatus(request.Status) {
		metrics.WorkflowCompleted(request.WorkflowID, request.Status)
	}
	s.dispatchEvents(request, events)
	return request, nil
}

// dispatchAction 按动作类型推进请求状态，返回要发出的事件
func (s *WorkflowService) dispatchAction(ctx context.Context, tx *gorm.DB, workflow *entity.ApprovalWorkflow, stage *entity.ApprovalStage, request *entity.ApprovalRequest, action *entity.ApprovalAction) ([]WorkflowEvent, error) {
	now := time.Now()
	base := WorkflowEvent{
		RequestID:    request.ID,
		WorkflowName: workflow.Name,
		StageID:      stage.ID,
		StageName:    stage.Name,
		TargetType:   request.TargetType,
		TargetID:     request.TargetID,
		RequesterID:  request.RequesterID,
		ActorID:      action.ApproverID,
		Comment:      action.Comment,
		Priority:     request.Priority,
	}

	switch action.Action {
	case entity.ApprovalActionApprove:
		return s.handleApprove(ctx, tx, workflow, stage, request, base, now)

	case entity.ApprovalActionReject:
		request.Status = entity.RequestStatusRejected
		request.CurrentStageID = nil
		request.CompletedAt = &now
		ev := base
		ev.Type = EventWorkflowRejected
		return []WorkflowEvent{ev}, nil

	case entity.ApprovalActionRequestChanges:
		// 请求保持打开并停留在当前阶段，只通知发起人
		ev := base
		ev.Type = EventChangesRequested
		return []WorkflowEvent{ev}, nil

	case entity.ApprovalActionDelegate:
		// 委托只是通知：被委托人必须自行满足阶段授权才能决策
		delegateTo, _ := action.Metadata.DelegateTo()
		ev := base
		ev.Type = EventDelegated
		ev.Recipients = []string{delegateTo}
		return []WorkflowEvent{ev}, nil

	case entity.ApprovalActionEscalate:
		// 升级提高可见性，不放弃当前阶段
		request.Status = entity.RequestStatusEscalated
		request.EscalationLevel++
		request.EscalatedAt = &now
		ev := base
		ev.Type = EventWorkflowEscalated
		ev.Recipients = s.escalationRecipients(tx, stage)
		return []WorkflowEvent{ev}, nil
	}
	return nil, NewValidation(CodeInvalidAction, fmt.Sprintf("未知审批动作: %s", action.Action))
}

// handleApprove 配额计数与阶段推进
func (s *WorkflowService) handleApprove(ctx context.Context, tx *gorm.DB, workflow *entity.ApprovalWorkflow, stage *entity.ApprovalStage, request *entity.ApprovalRequest, base WorkflowEvent, now time.Time) ([]WorkflowEvent, error) {
	// 同一审批人的重复 approve 不重复计数
	var approved int64
	if err := tx.Model(&entity.ApprovalAction{}).
		Where("request_id = ? AND stage_id = ? AND action = ?", request.ID, stage.ID, entity.ApprovalActionApprove).
		Distinct("approver_id").
		Count(&approved).Error; err != nil {
		return nil, fmt.Errorf("统计阶段审批数失败: %w", err)
	}

	if approved < int64(stage.ApproversRequired) {
		// 配额未满，提醒尚未表态的审批人
		request.Status = entity.RequestStatusInProgress
		rctx := s.buildRoutingContextTx(tx, workflow, stage, request)
		decision := s.routing.RouteApproval(ctx, rctx)
		var actions []entity.ApprovalAction
		if err := tx.Where("request_id = ?", request.ID).Find(&actions).Error; err != nil {
			actions = nil
		}
		ev := base
		ev.Type = EventApprovalReminder
		ev.Recipients = RemainingApprovers(decision.TargetApprovers, actions, stage.ID)
		return []WorkflowEvent{ev}, nil
	}

	// 阶段完成，沿顺序找下一个阶段，条件命中的阶段被跳过
	// 显式循环，迭代次数以阶段总数为上界
	completed := base
	completed.Type = EventStageCompleted
	events := []WorkflowEvent{completed}

	next := s.nextActiveStage(tx, workflow, stage, request)
	if next == nil {
		request.Status = entity.RequestStatusApproved
		request.CurrentStageID = nil
		request.CompletedAt = &now
		done := base
		done.Type = EventWorkflowCompleted
		return append(events, done), nil
	}

	nextID := next.ID
	request.CurrentStageID = &nextID
	request.Status = entity.RequestStatusInProgress

	rctx := s.buildRoutingContextTx(tx, workflow, next, request)
	decision := s.routing.RouteApproval(ctx, rctx)
	log.Printf("[WorkflowService] 请求 %s 进入阶段「%s」，路由到 %d 名审批人", request.ID, next.Name, len(decision.TargetApprovers))

	entered := base
	entered.Type = EventStageEntered
	entered.StageID = next.ID
	entered.StageName = next.Name
	entered.Recipients = decision.TargetApprovers
	return append(events, entered), nil
}

// nextActiveStage 当前阶段之后第一个不满足跳过条件的阶段，没有则返回 nil
func (s *WorkflowService) nextActiveStage(tx *gorm.DB, workflow *entity.ApprovalWorkflow, current *entity.ApprovalStage, request *entity.ApprovalRequest) *entity.ApprovalStage {
	idx := -1
	for i := range workflow.Stages {
		if workflow.Stages[i].ID == current.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	rctx := s.buildRoutingContextTx(tx, workflow, current, request)
	for i := idx + 1; i < len(workflow.Stages); i++ {
		candidate := &workflow.Stages[i]
		if s.shouldSkipStage(candidate, rctx) {
			log.Printf("[WorkflowService] 请求 %s 跳过阶段「%s」(条件命中)", request.ID, candidate.Name)
			continue
		}
		return candidate
	}
	return nil
}

// shouldSkipStage 跳过条件按 OR 求值：任一条件命中即跳过
func (s *WorkflowService) shouldSkipStage(stage *entity.ApprovalStage, rctx RoutingContext) bool {
	for _, cond := range stage.SkipConditions {
		if s.routing.evaluateCondition(cond, rctx) {
			return true
		}
	}
	return false
}

// authorizeApprover 阶段授权：显式审批人，或角色匹配
// 阶段两者都未配置时退化为默认审批角色
func (s *WorkflowService) authorizeApprover(tx *gorm.DB, stage *entity.ApprovalStage, approverID string) error {
	if stage.Approvers.Contains(approverID) {
		return nil
	}

	roles := []string(stage.ApproverRoles)
	if len(stage.Approvers) == 0 && len(roles) == 0 {
		roles = defaultApproverRoles
	}
	if len(roles) > 0 {
		var user entity.User
		if err := tx.Where("id = ?", approverID).First(&user).Error; err == nil {
			if roleIn(user.Role, roles) {
				return nil
			}
		}
		return NewForbidden("你不是该阶段的审批人", roles...)
	}
	return NewForbidden("你不是该阶段的审批人")
}

// escalationRecipients 升级事件的接收人：阶段升级角色的全部成员，不做过滤
func (s *WorkflowService) escalationRecipients(tx *gorm.DB, stage *entity.ApprovalStage) []string {
	roles := []string(stage.EscalationRoles)
	if len(roles) == 0 {
		roles = []string{"admin"}
	}
	var users []entity.User
	if err := tx.Where("status = ? AND role IN ?", entity.UserStatusActive, roles).Find(&users).Error; err != nil {
		log.Printf("[WorkflowService] 查询升级接收人失败: %v", err)
		return nil
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

// CancelWorkflow 取消审批请求
func (s *WorkflowService) CancelWorkflow(ctx context.Context, requestID, userID, reason string) (*entity.ApprovalRequest, error) {
	var request *entity.ApprovalRequest
	var events []WorkflowEvent

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		request, err = s.repos.Request.FindByIDForUpdate(tx, requestID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NewNotFound("审批请求", requestID)
			}
			return fmt.Errorf("加载审批请求失败: %w", err)
		}

		if request.Status == entity.RequestStatusApproved {
			return NewConflict(CodeCannotCancel, "已通过的审批不能取消")
		}
		if entity.IsTerminalStatus(request.Status) {
			return NewConflict(CodeRequestTerminal, fmt.Sprintf("审批请求已完结（状态: %s）", request.Status))
		}

		workflow, err := s.loadWorkflowTx(tx, request.WorkflowID)
		if err != nil {
			return err
		}

		// 合成一条取消动作，保持动作日志完整
		stageID := ""
		if request.CurrentStageID != nil {
			stageID = *request.CurrentStageID
		}
		now := time.Now()
		action := &entity.ApprovalAction{
			ID:         uuid.New().String(),
			RequestID:  request.ID,
			StageID:    stageID,
			ApproverID: userID,
			Action:     entity.ApprovalActionCancel,
			Comment:    reason,
			CreatedAt:  now,
		}
		if err := tx.Create(action).Error; err != nil {
			return fmt.Errorf("记录取消动作失败: %w", err)
		}

		request.Status = entity.RequestStatusCancelled
		request.CurrentStageID = nil
		request.CompletedAt = &now
		request.UpdatedAt = now
		if err := tx.Save(request).Error; err != nil {
			return fmt.Errorf("更新审批请求失败: %w", err)
		}

		events = []WorkflowEvent{{
			Type:         EventWorkflowCancelled,
			RequestID:    request.ID,
			WorkflowName: workflow.Name,
			TargetType:   request.TargetType,
			TargetID:     request.TargetID,
			RequesterID:  request.RequesterID,
			ActorID:      userID,
			Comment:      reason,
			Priority:     request.Priority,
		}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.WorkflowCompleted(request.WorkflowID, request.Status)
	s.dispatchEvents(request, events)
	return request, nil
}

// StageBrief 阶段摘要
type StageBrief struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// WorkflowStatus 请求进度视图
type WorkflowStatus struct {
	Request         *entity.ApprovalRequest `json:"request"`
	CurrentStage    *StageBrief             `json:"current_stage,omitempty"`
	CompletedStages []StageBrief            `json:"completed_stages"`
	PendingStages   []StageBrief            `json:"pending_stages"`
	Progress        int                     `json:"progress"` // 百分比
}

// GetWorkflowStatus 获取请求进度
// 进度 = 当前阶段之前的阶段数 / 总阶段数，已通过的请求为 100
func (s *WorkflowService) GetWorkflowStatus(ctx context.Context, requestID string) (*WorkflowStatus, error) {
	request, err := s.repos.Request.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("审批请求", requestID)
		}
		return nil, err
	}
	workflow, err := s.repos.Workflow.FindByID(ctx, request.WorkflowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("审批流程", request.WorkflowID)
		}
		return nil, err
	}

	status := &WorkflowStatus{
		Request:         request,
		CompletedStages: []StageBrief{},
		PendingStages:   []StageBrief{},
	}
	total := len(workflow.Stages)
	if total == 0 {
		return status, nil
	}

	brief := func(st *entity.ApprovalStage) StageBrief {
		return StageBrief{ID: st.ID, Name: st.Name, Order: st.StageOrder}
	}

	if request.CurrentStageID == nil {
		if request.Status == entity.RequestStatusApproved {
			for i := range workflow.Stages {
				status.CompletedStages = append(status.CompletedStages, brief(&workflow.Stages[i]))
			}
			status.Progress = 100
		}
		return status, nil
	}

	seen := false
	for i := range workflow.Stages {
		st := &workflow.Stages[i]
		if st.ID == *request.CurrentStageID {
			status.CurrentStage = &StageBrief{ID: st.ID, Name: st.Name, Order: st.StageOrder}
			seen = true
			continue
		}
		if !seen {
			status.CompletedStages = append(status.CompletedStages, brief(st))
		} else {
			status.PendingStages = append(status.PendingStages, brief(st))
		}
	}
	status.Progress = int(math.Round(float64(len(status.CompletedStages)) / float64(total) * 100))
	return status, nil
}

// WorkflowMetrics 流程聚合指标
type WorkflowMetrics struct {
	WorkflowID         string  `json:"workflow_id"`
	TotalRequests      int64   `json:"total_requests"`
	CompletedRequests  int64   `json:"completed_requests"`
	RejectedRequests   int64   `json:"rejected_requests"`
	InFlightRequests   int64   `json:"in_flight_requests"`
	ApprovalRate       float64 `json:"approval_rate"`        // approved / (approved+rejected)
	AvgCompletionHours float64 `json:"avg_completion_hours"`
	EscalationRate     float64 `json:"escalation_rate"`
}

// GetWorkflowMetrics 获取流程聚合指标，时间窗口可选
func (s *WorkflowService) GetWorkflowMetrics(ctx context.Context, workflowID string, from, to *time.Time) (*WorkflowMetrics, error) {
	if _, err := s.repos.Workflow.FindByID(ctx, workflowID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("审批流程", workflowID)
		}
		return nil, err
	}

	stats, err := s.repos.Request.StatsByWorkflow(ctx, workflowID, from, to)
	if err != nil {
		return nil, fmt.Errorf("统计流程指标失败: %w", err)
	}

	metrics := &WorkflowMetrics{
		WorkflowID:         workflowID,
		TotalRequests:      stats.Total,
		CompletedRequests:  stats.Approved,
		RejectedRequests:   stats.Rejected,
		InFlightRequests:   stats.InFlight,
		AvgCompletionHours: stats.AvgDuration,
	}
	if decided := stats.Approved + stats.Rejected; decided > 0 {
		metrics.ApprovalRate = float64(stats.Approved) / float64(decided)
	}
	if stats.Total > 0 {
		metrics.EscalationRate = float64(stats.Escalated) / float64(stats.Total)
	}
	return metrics, nil
}

// GetRequest 获取请求详情
func (s *WorkflowService) GetRequest(ctx context.Context, requestID string) (*entity.ApprovalRequest, error) {
	request, err := s.repos.Request.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("审批请求", requestID)
		}
		return nil, err
	}
	return request, nil
}

// ListRequests 请求列表
func (s *WorkflowService) ListRequests(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]entity.ApprovalRequest, int64, error) {
	return s.repos.Request.List(ctx, filters, page, pageSize)
}

// loadWorkflowTx 事务内加载流程定义，阶段按顺序升序
func (s *WorkflowService) loadWorkflowTx(tx *gorm.DB, workflowID string) (*entity.ApprovalWorkflow, error) {
	var workflow entity.ApprovalWorkflow
	err := tx.
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage_order ASC")
		}).
		Where("id = ?", workflowID).
		First(&workflow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound("审批流程", workflowID)
		}
		return nil, fmt.Errorf("加载审批流程失败: %w", err)
	}
	return &workflow, nil
}

// buildRoutingContext 从目标实体提取路由上下文（预算、内容类型、紧急度）
func (s *WorkflowService) buildRoutingContext(ctx context.Context, workflow *entity.ApprovalWorkflow, stage *entity.ApprovalStage, request *entity.ApprovalRequest) RoutingContext {
	rctx := RoutingContext{Workflow: workflow, Stage: stage}
	if role, err := s.repos.User.RoleOf(ctx, request.RequesterID); err == nil {
		rctx.RequesterRole = role
	}
	if request.TargetType == "content" {
		if content, err := s.repos.Content.FindByID(ctx, request.TargetID); err == nil {
			rctx.ContentType = content.ContentType
			rctx.Budget = content.Budget
			rctx.UrgencyLevel = content.UrgencyLevel
		}
	}
	return rctx
}

// buildRoutingContextTx 事务内版本
func (s *WorkflowService) buildRoutingContextTx(tx *gorm.DB, workflow *entity.ApprovalWorkflow, stage *entity.ApprovalStage, request *entity.ApprovalRequest) RoutingContext {
	rctx := RoutingContext{Workflow: workflow, Stage: stage}
	var requester entity.User
	if err := tx.Where("id = ?", request.RequesterID).First(&requester).Error; err == nil {
		rctx.RequesterRole = requester.Role
	}
	if request.TargetType == "content" {
		var content entity.Content
		if err := tx.Where("id = ?", request.TargetID).First(&content).Error; err == nil {
			rctx.ContentType = content.ContentType
			rctx.Budget = content.Budget
			rctx.UrgencyLevel = content.UrgencyLevel
		}
	}
	return rctx
}

// dispatchEvents 事件转通知意图并异步投递
// 通知失败只记日志，绝不回滚或阻塞状态变更
func (s *WorkflowService) dispatchEvents(request *entity.ApprovalRequest, events []WorkflowEvent) {
	if len(events) == 0 {
		return
	}
	var intents []NotificationIntent
	for _, ev := range events {
		intents = append(intents, GenerateIntents(ev)...)
	}
	if len(intents) == 0 || !s.notifier.Enabled() {
		return
	}

	go func() {
		bgCtx := context.Background()
		for _, intent := range intents {
			var user entity.User
			webhook := ""
			if err := s.db.Where("id = ?", intent.RecipientID).First(&user).Error; err == nil {
				webhook = user.WebhookURL
			}
			card := notify.Card{
				Title:    intent.Title,
				Text:     intent.Message,
				Priority: intent.Priority,
				Fields: []notify.Field{
					{Label: "请求", Value: intent.RequestID},
					{Label: "事件", Value: intent.EventType},
				},
			}
			if err := s.notifier.SendCard(bgCtx, webhook, card); err != nil {
				log.Printf("[WorkflowNotify] 发送通知给[%s]失败: %v", intent.RecipientID, err)
				metrics.NotificationSent("error")
			} else {
				metrics.NotificationSent("ok")
			}
		}
	}()
}

// stageByID 在流程定义内定位阶段
func stageByID(workflow *entity.ApprovalWorkflow, stageID string) *entity.ApprovalStage {
	for i := range workflow.Stages {
		if workflow.Stages[i].ID == stageID {
			return &workflow.Stages[i]
		}
	}
	return nil
}
