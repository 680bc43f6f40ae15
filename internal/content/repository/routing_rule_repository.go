package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/muse/internal/content/entity"
	"gorm.io/gorm"
)

// RoutingRuleRepository 路由规则仓储
type RoutingRuleRepository struct {
	db *gorm.DB
}

// NewRoutingRuleRepository 创建路由规则仓储
func NewRoutingRuleRepository(db *gorm.DB) *RoutingRuleRepository {
	return &RoutingRuleRepository{db: db}
}

// FindByID 根据ID查找规则
func (r *RoutingRuleRepository) FindByID(ctx context.Context, id string) (*entity.RoutingRule, error) {
	var rule entity.RoutingRule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// ListActive 获取启用的规则，按优先级升序（数值小的先求值）
func (r *RoutingRuleRepository) ListActive(ctx context.Context) ([]entity.RoutingRule, error) {
	var rules []entity.RoutingRule
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

// List 获取全部规则
func (r *RoutingRuleRepository) List(ctx context.Context) ([]entity.RoutingRule, error) {
	var rules []entity.RoutingRule
	err := r.db.WithContext(ctx).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

// Create 创建规则
func (r *RoutingRuleRepository) Create(ctx context.Context, rule *entity.RoutingRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// Update 更新规则
func (r *RoutingRuleRepository) Update(ctx context.Context, rule *entity.RoutingRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// Delete 删除规则
func (r *RoutingRuleRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.RoutingRule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPendingByApprover 统计各审批人当前待处理的请求数（作为实时工作量）
func (r *RoutingRuleRepository) CountPendingByApprover(ctx context.Context, userIDs []string) (map[string]int, error) {
	if len(userIDs) == 0 {
		return map[string]int{}, nil
	}
	type row struct {
		ApproverID string
		Count      int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Table("approval_actions").
		Select("approval_actions.approver_id, count(DISTINCT approval_actions.request_id) as count").
		Joins("JOIN approval_requests ON approval_requests.id = approval_actions.request_id").
		Where("approval_actions.approver_id IN ? AND approval_requests.status IN ?", userIDs,
			[]string{entity.RequestStatusPending, entity.RequestStatusInProgress, entity.RequestStatusEscalated}).
		Group("approval_actions.approver_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(rows))
	for _, row := range rows {
		result[row.ApproverID] = row.Count
	}
	return result, nil
}
