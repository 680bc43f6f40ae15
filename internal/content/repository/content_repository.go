package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/muse/internal/content/entity"
	"gorm.io/gorm"
)

// ContentRepository 内容仓储
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository 创建内容仓储
func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// FindByID 根据ID查找内容
func (r *ContentRepository) FindByID(ctx context.Context, id string) (*entity.Content, error) {
	var content entity.Content
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("id = ?", id).
		First(&content).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &content, nil
}

// Create 创建内容
func (r *ContentRepository) Create(ctx context.Context, content *entity.Content) error {
	return r.db.WithContext(ctx).Create(content).Error
}

// Update 更新内容
func (r *ContentRepository) Update(ctx context.Context, content *entity.Content) error {
	return r.db.WithContext(ctx).Save(content).Error
}

// List 分页查询内容列表
func (r *ContentRepository) List(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]entity.Content, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Content{})

	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if contentType, ok := filters["content_type"].(string); ok && contentType != "" {
		query = query.Where("content_type = ?", contentType)
	}
	if channel, ok := filters["channel"].(string); ok && channel != "" {
		query = query.Where("channel = ?", channel)
	}
	if createdBy, ok := filters["created_by"].(string); ok && createdBy != "" {
		query = query.Where("created_by = ?", createdBy)
	}
	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		query = query.Where("title ILIKE ?", "%"+keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var contents []entity.Content
	err := query.
		Preload("Creator").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&contents).Error
	if err != nil {
		return nil, 0, err
	}
	return contents, total, nil
}

// CreateActionLog 写入操作日志
func (r *ContentRepository) CreateActionLog(ctx context.Context, log *entity.ContentActionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListActionLogs 查询内容的操作日志，按时间倒序
func (r *ContentRepository) ListActionLogs(ctx context.Context, contentID string) ([]entity.ContentActionLog, error) {
	var logs []entity.ContentActionLog
	err := r.db.WithContext(ctx).
		Where("content_id = ?", contentID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// CountByStatus 按状态统计内容数量
func (r *ContentRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&entity.Content{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.Status] = r.Count
	}
	return result, nil
}
