package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/muse/internal/content/entity"
	"github.com/bitfantasy/muse/internal/content/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkflowDefinitionService 审批流程定义管理
// 流程一旦被请求引用即视为不可变，只允许切换启用状态；不做物理删除
type WorkflowDefinitionService struct {
	db    *gorm.DB
	repos *repository.Repositories
}

// NewWorkflowDefinitionService 创建流程定义服务
func NewWorkflowDefinitionService(db *gorm.DB, repos *repository.Repositories) *WorkflowDefinitionService {
	return &WorkflowDefinitionService{db: db, repos: repos}
}

// StageReq 阶段定义参数
type StageReq struct {
	Name              string               `json:"name" binding:"required"`
	Order             int                  `json:"order"`
	ApproversRequired int                  `json:"approvers_required"`
	Approvers         []string             `json:"approvers"`
	ApproverRoles     []string             `json:"approver_roles"`
	SkipConditions    entity.ConditionList `json:"skip_conditions"`
	TimeoutHours      *int                 `json:"timeout_hours"`
	EscalationRoles   []string             `json:"escalation_roles"`
}

// CreateWorkflowReq 创建流程参数
type CreateWorkflowReq struct {
	Name                string     `json:"name" binding:"required"`
	Description         string     `json:"description"`
	AllowParallelStages bool       `json:"allow_parallel_stages"`
	RequireAllApprovers bool       `json:"require_all_approvers"`
	AutoStart           bool       `json:"auto_start"`
	DefaultTimeoutHours int        `json:"default_timeout_hours"`
	Stages              []StageReq `json:"stages" binding:"required"`
}

// CreateWorkflow 创建审批流程
// 阶段顺序必须严格递增（不要求连续），每阶段配额至少为 1
func (s *WorkflowDefinitionService) CreateWorkflow(ctx context.Context, req CreateWorkflowReq, createdBy string) (*entity.ApprovalWorkflow, error) {
	if len(req.Stages) == 0 {
		return nil, NewValidation(CodeEmptyWorkflow, "审批流程至少需要一个阶段")
	}

	prevOrder := 0
	for i, st := range req.Stages {
		if st.Name == "" {
			return nil, NewValidation(CodeInvalidAction, fmt.Sprintf("第 %d 个阶段缺少名称", i+1))
		}
		if i > 0 && st.Order <= prevOrder {
			return nil, NewValidation(CodeInvalidAction, "阶段顺序必须严格递增")
		}
		prevOrder = st.Order
		if st.ApproversRequired < 1 {
			return nil, NewValidation(CodeInvalidAction, fmt.Sprintf("阶段「%s」的审批配额至少为 1", st.Name))
		}
		if len(st.SkipConditions) > 0 {
			if err := validateConditions(st.SkipConditions); err != nil {
				return nil, err
			}
		}
	}

	timeout := req.DefaultTimeoutHours
	if timeout <= 0 {
		timeout = 72
	}

	workflow := &entity.ApprovalWorkflow{
		ID:                  uuid.New().String(),
		Name:                req.Name,
		Description:         req.Description,
		Version:             1,
		IsActive:            true,
		AllowParallelStages: req.AllowParallelStages,
		RequireAllApprovers: req.RequireAllApprovers,
		AutoStart:           req.AutoStart,
		DefaultTimeoutHours: timeout,
		CreatedBy:           createdBy,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
	for _, st := range req.Stages {
		workflow.Stages = append(workflow.Stages, entity.ApprovalStage{
			ID:                uuid.New().String(),
			WorkflowID:        workflow.ID,
			Name:              st.Name,
			StageOrder:        st.Order,
			ApproversRequired: st.ApproversRequired,
			Approvers:         st.Approvers,
			ApproverRoles:     st.ApproverRoles,
			SkipConditions:    st.SkipConditions,
			TimeoutHours:      st.TimeoutHours,
			EscalationRoles:   st.EscalationRoles,
			CreatedAt:         time.Now(),
			UpdatedAt:         time.Now(),
		})
	}

	if err := s.repos.Workflow.Create(ctx, workflow); err != nil {
		return nil, fmt.Errorf("创建审批流程失败: %w", err)
	}
	return workflow, nil
}

// UpdateWorkflow 更新流程基本信息
// 已被请求引用的流程只能切换启用状态
func (s *WorkflowDefinitionService) UpdateWorkflow(ctx context.Context, id string, req CreateWorkflowReq) (*entity.ApprovalWorkflow, error) {
	workflow, err := s.repos.Workflow.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("审批流程", id)
		}
		return nil, err
	}

	referenced, err := s.repos.Workflow.HasRequests(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("检查流程引用失败: %w", err)
	}
	if referenced {
		return nil, NewConflict(CodeRequestTerminal, "流程已被审批请求引用，只能切换启用状态")
	}

	workflow.Name = req.Name
	workflow.Description = req.Description
	workflow.AllowParallelStages = req.AllowParallelStages
	workflow.RequireAllApprovers = req.RequireAllApprovers
	workflow.AutoStart = req.AutoStart
	if req.DefaultTimeoutHours > 0 {
		workflow.DefaultTimeoutHours = req.DefaultTimeoutHours
	}
	workflow.UpdatedAt = time.Now()

	if err := s.repos.Workflow.Update(ctx, workflow); err != nil {
		return nil, fmt.Errorf("更新审批流程失败: %w", err)
	}
	return workflow, nil
}

// SetWorkflowActive 启用/停用流程（软删除语义）
func (s *WorkflowDefinitionService) SetWorkflowActive(ctx context.Context, id string, active bool) error {
	if err := s.repos.Workflow.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFound("审批流程", id)
		}
		return err
	}
	return nil
}

// GetWorkflow 获取流程详情
func (s *WorkflowDefinitionService) GetWorkflow(ctx context.Context, id string) (*entity.ApprovalWorkflow, error) {
	workflow, err := s.repos.Workflow.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("审批流程", id)
		}
		return nil, err
	}
	return workflow, nil
}

// ListWorkflows 流程列表
func (s *WorkflowDefinitionService) ListWorkflows(ctx context.Context, onlyActive bool, page, pageSize int) ([]entity.ApprovalWorkflow, int64, error) {
	return s.repos.Workflow.List(ctx, onlyActive, page, pageSize)
}

// FindAutoStartWorkflow 找到第一个启用了自动发起的流程，没有返回 nil
func (s *WorkflowDefinitionService) FindAutoStartWorkflow(ctx context.Context) (*entity.ApprovalWorkflow, error) {
	workflows, _, err := s.repos.Workflow.List(ctx, true, 1, 50)
	if err != nil {
		return nil, err
	}
	for i := range workflows {
		if workflows[i].AutoStart && len(workflows[i].Stages) > 0 {
			return &workflows[i], nil
		}
	}
	return nil, nil
}
