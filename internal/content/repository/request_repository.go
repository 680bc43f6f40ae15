package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/muse/internal/content/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestRepository 审批请求仓储
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository 创建审批请求仓储
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// FindByID 根据ID查找请求，预载动作记录
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	var request entity.ApprovalRequest
	err := r.db.WithContext(ctx).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Approvals.Approver").
		Preload("Requester").
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

// FindByIDForUpdate 行锁读取请求，必须在事务内调用
// 写路径全部经过该锁，保证单请求串行写
func (r *RequestRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*entity.ApprovalRequest, error) {
	var request entity.ApprovalRequest
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

// Create 创建请求
func (r *RequestRepository) Create(ctx context.Context, request *entity.ApprovalRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

// Update 更新请求
func (r *RequestRepository) Update(ctx context.Context, request *entity.ApprovalRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

// CreateAction 追加审批动作记录
func (r *RequestRepository) CreateAction(ctx context.Context, action *entity.ApprovalAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

// CountStageApprovals 统计某阶段已有的 approve 动作数（按审批人去重）
func (r *RequestRepository) CountStageApprovals(ctx context.Context, requestID, stageID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ApprovalAction{}).
		Where("request_id = ? AND stage_id = ? AND action = ?", requestID, stageID, entity.ApprovalActionApprove).
		Distinct("approver_id").
		Count(&count).Error
	return count, err
}

// ListActions 查询请求的全部动作记录，按时间正序
func (r *RequestRepository) ListActions(ctx context.Context, requestID string) ([]entity.ApprovalAction, error) {
	var actions []entity.ApprovalAction
	err := r.db.WithContext(ctx).
		Preload("Approver").
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&actions).Error
	return actions, err
}

// List 分页查询请求列表
func (r *RequestRepository) List(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]entity.ApprovalRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.ApprovalRequest{})

	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if workflowID, ok := filters["workflow_id"].(string); ok && workflowID != "" {
		query = query.Where("workflow_id = ?", workflowID)
	}
	if targetID, ok := filters["target_id"].(string); ok && targetID != "" {
		query = query.Where("target_id = ?", targetID)
	}
	if requesterID, ok := filters["requester_id"].(string); ok && requesterID != "" {
		query = query.Where("requester_id = ?", requesterID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []entity.ApprovalRequest
	err := query.
		Preload("Requester").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// ListActiveByTarget 查询目标实体尚未完结的请求
func (r *RequestRepository) ListActiveByTarget(ctx context.Context, targetType, targetID string) ([]entity.ApprovalRequest, error) {
	var requests []entity.ApprovalRequest
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND status IN ?", targetType, targetID,
			[]string{entity.RequestStatusPending, entity.RequestStatusInProgress, entity.RequestStatusEscalated}).
		Find(&requests).Error
	return requests, err
}

// WorkflowStats 流程维度的聚合统计
type WorkflowStats struct {
	Total       int64
	Approved    int64
	Rejected    int64
	Cancelled   int64
	Expired     int64
	InFlight    int64
	Escalated   int64   // 发生过升级的请求数
	AvgDuration float64 // 小时，仅统计已完结请求
}

// StatsByWorkflow 统计指定流程在时间窗口内的请求分布与平均处理时长
// from/to 为 nil 表示不限
func (r *RequestRepository) StatsByWorkflow(ctx context.Context, workflowID string, from, to *time.Time) (*WorkflowStats, error) {
	stats := &WorkflowStats{}

	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&entity.ApprovalRequest{}).
			Where("workflow_id = ?", workflowID)
		if from != nil {
			q = q.Where("created_at >= ?", *from)
		}
		if to != nil {
			q = q.Where("created_at < ?", *to)
		}
		return q
	}

	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := base().
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case entity.RequestStatusApproved:
			stats.Approved = row.Count
		case entity.RequestStatusRejected:
			stats.Rejected = row.Count
		case entity.RequestStatusCancelled:
			stats.Cancelled = row.Count
		case entity.RequestStatusExpired:
			stats.Expired = row.Count
		default:
			stats.InFlight += row.Count
		}
	}

	if err := base().
		Where("escalation_level > 0").
		Count(&stats.Escalated).Error; err != nil {
		return nil, err
	}

	var avgSeconds *float64
	if err := base().
		Select("AVG(EXTRACT(EPOCH FROM (completed_at - created_at)))").
		Where("completed_at IS NOT NULL").
		Scan(&avgSeconds).Error; err != nil {
		return nil, err
	}
	if avgSeconds != nil {
		stats.AvgDuration = *avgSeconds / 3600
	}
	return stats, nil
}

// ListOverdue 查询已超期且未完结的请求
func (r *RequestRepository) ListOverdue(ctx context.Context, now time.Time) ([]entity.ApprovalRequest, error) {
	var requests []entity.ApprovalRequest
	err := r.db.WithContext(ctx).
		Where("due_date IS NOT NULL AND due_date < ? AND status IN ?", now,
			[]string{entity.RequestStatusPending, entity.RequestStatusInProgress, entity.RequestStatusEscalated}).
		Find(&requests).Error
	return requests, err
}
