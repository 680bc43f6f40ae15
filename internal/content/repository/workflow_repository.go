package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/muse/internal/content/entity"
	"gorm.io/gorm"
)

// WorkflowRepository 审批流程定义仓储
type WorkflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository 创建审批流程仓储
func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// FindByID 根据ID查找流程，预载阶段并按 stage_order 排序
func (r *WorkflowRepository) FindByID(ctx context.Context, id string) (*entity.ApprovalWorkflow, error) {
	var workflow entity.ApprovalWorkflow
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage_order ASC")
		}).
		Where("id = ?", id).
		First(&workflow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &workflow, nil
}

// Create 创建流程及其阶段（同一事务）
func (r *WorkflowRepository) Create(ctx context.Context, workflow *entity.ApprovalWorkflow) error {
	return r.db.WithContext(ctx).Create(workflow).Error
}

// Update 更新流程基本信息（不触碰阶段）
func (r *WorkflowRepository) Update(ctx context.Context, workflow *entity.ApprovalWorkflow) error {
	return r.db.WithContext(ctx).Model(&entity.ApprovalWorkflow{}).
		Where("id = ?", workflow.ID).
		Updates(map[string]interface{}{
			"name":                  workflow.Name,
			"description":           workflow.Description,
			"allow_parallel_stages": workflow.AllowParallelStages,
			"require_all_approvers": workflow.RequireAllApprovers,
			"auto_start":            workflow.AutoStart,
			"default_timeout_hours": workflow.DefaultTimeoutHours,
		}).Error
}

// SetActive 启用/停用流程
func (r *WorkflowRepository) SetActive(ctx context.Context, id string, active bool) error {
	result := r.db.WithContext(ctx).Model(&entity.ApprovalWorkflow{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List 分页查询流程列表
func (r *WorkflowRepository) List(ctx context.Context, onlyActive bool, page, pageSize int) ([]entity.ApprovalWorkflow, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.ApprovalWorkflow{})
	if onlyActive {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var workflows []entity.ApprovalWorkflow
	err := query.
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage_order ASC")
		}).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&workflows).Error
	if err != nil {
		return nil, 0, err
	}
	return workflows, total, nil
}

// HasRequests 流程是否已被审批请求引用（引用后定义不可变）
func (r *WorkflowRepository) HasRequests(ctx context.Context, workflowID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ApprovalRequest{}).
		Where("workflow_id = ?", workflowID).
		Count(&count).Error
	return count > 0, err
}
