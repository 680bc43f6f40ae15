package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bitfantasy/muse/internal/content/entity"
	"github.com/bitfantasy/muse/internal/content/repository"
	"github.com/bitfantasy/muse/internal/shared/engine"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentService 内容编辑生命周期服务
// 状态变更全部走状态机转换表，内容状态与审批工作流共用同一套状态词汇
type ContentService struct {
	db          *gorm.DB
	repos       *repository.Repositories
	machine     *engine.Machine
	workflow    *WorkflowService
	workflowDef *WorkflowDefinitionService
}

// NewContentService 创建内容服务
func NewContentService(db *gorm.DB, repos *repository.Repositories, workflow *WorkflowService, workflowDef *WorkflowDefinitionService) *ContentService {
	return &ContentService{
		db:          db,
		repos:       repos,
		machine:     engine.NewContentMachine(),
		workflow:    workflow,
		workflowDef: workflowDef,
	}
}

// CreateContentReq 创建内容参数
type CreateContentReq struct {
	Title        string   `json:"title" binding:"required"`
	Body         string   `json:"body"`
	ContentType  string   `json:"content_type"`
	Channel      string   `json:"channel"`
	Budget       float64  `json:"budget"`
	UrgencyLevel string   `json:"urgency_level"`
	Tags         []string `json:"tags"`
	AssetIDs     []string `json:"asset_ids"`
}

// CreateContent 创建内容，初始状态为草稿
func (s *ContentService) CreateContent(ctx context.Context, req CreateContentReq, createdBy string) (*entity.Content, error) {
	contentType := req.ContentType
	if contentType == "" {
		contentType = "social_post"
	}
	urgency := req.UrgencyLevel
	if urgency == "" {
		urgency = "normal"
	}

	content := &entity.Content{
		ID:           uuid.New().String(),
		Title:        req.Title,
		Body:         req.Body,
		ContentType:  contentType,
		Channel:      req.Channel,
		Status:       engine.StateDraft,
		Budget:       req.Budget,
		UrgencyLevel: urgency,
		Tags:         req.Tags,
		AssetIDs:     req.AssetIDs,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.repos.Content.Create(ctx, content); err != nil {
		return nil, fmt.Errorf("创建内容失败: %w", err)
	}
	return content, nil
}

// UpdateContentReq 更新内容参数
type UpdateContentReq struct {
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Channel      string   `json:"channel"`
	Budget       *float64 `json:"budget"`
	UrgencyLevel string   `json:"urgency_level"`
	Tags         []string `json:"tags"`
	AssetIDs     []string `json:"asset_ids"`
}

// UpdateContent 更新内容正文，仅草稿和已生成状态允许编辑
func (s *ContentService) UpdateContent(ctx context.Context, id string, req UpdateContentReq) (*entity.Content, error) {
	content, err := s.repos.Content.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("内容", id)
		}
		return nil, err
	}
	if content.Status != engine.StateDraft && content.Status != engine.StateGenerated {
		return nil, NewConflict(CodeInvalidAction, fmt.Sprintf("状态[%s]下不允许编辑内容", content.Status))
	}

	if req.Title != "" {
		content.Title = req.Title
	}
	content.Body = req.Body
	content.Channel = req.Channel
	if req.Budget != nil {
		content.Budget = *req.Budget
	}
	if req.UrgencyLevel != "" {
		content.UrgencyLevel = req.UrgencyLevel
	}
	if req.Tags != nil {
		content.Tags = req.Tags
	}
	if req.AssetIDs != nil {
		content.AssetIDs = req.AssetIDs
	}
	content.UpdatedAt = time.Now()

	if err := s.repos.Content.Update(ctx, content); err != nil {
		return nil, fmt.Errorf("更新内容失败: %w", err)
	}
	return content, nil
}

// ExecuteAction 对内容执行编辑状态转换
// 转换表之外的 (状态, 操作) 一律拒绝；角色与意见要求由状态机校验
func (s *ContentService) ExecuteAction(ctx context.Context, contentID, userID, action, comment string) (*entity.Content, error) {
	content, err := s.repos.Content.FindByID(ctx, contentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("内容", contentID)
		}
		return nil, err
	}

	role, err := s.repos.User.RoleOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询用户角色失败: %w", err)
	}

	result := s.machine.ExecuteTransition(content.Status, action, engine.ActionContext{
		Role:    role,
		Comment: comment,
	})
	if !result.OK {
		switch result.Code {
		case engine.CodeForbidden:
			return nil, NewForbidden(result.Message, result.AllowedRoles...)
		case engine.CodeMissingComment:
			return nil, NewValidation(CodeMissingComment, result.Message)
		default:
			return nil, NewValidation(CodeInvalidAction, result.Message)
		}
	}

	fromStatus := content.Status
	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		content.Status = result.NewState
		content.UpdatedAt = now
		switch result.NewState {
		case engine.StatePublished:
			content.PublishedAt = &now
		case engine.StateArchived:
			content.ArchivedAt = &now
		}
		if err := tx.Save(content).Error; err != nil {
			return fmt.Errorf("更新内容状态失败: %w", err)
		}

		logEntry := &entity.ContentActionLog{
			ID:           uuid.New().String(),
			ContentID:    content.ID,
			Action:       action,
			FromStatus:   fromStatus,
			ToStatus:     result.NewState,
			OperatorID:   userID,
			OperatorType: "user",
			Comment:      comment,
			CreatedAt:    now,
		}
		if result.ApprovalStatus != "" {
			logEntry.EventData = entity.JSONB{"approval_status": result.ApprovalStatus}
		}
		if err := tx.Create(logEntry).Error; err != nil {
			return fmt.Errorf("记录内容操作日志失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 送审时自动发起配置了 auto_start 的审批流程，失败只记日志
	if action == engine.ActionSubmitForReview {
		s.autoStartApproval(ctx, content, userID)
	}

	return content, nil
}

// autoStartApproval 送审后自动发起审批，尽力而为
func (s *ContentService) autoStartApproval(ctx context.Context, content *entity.Content, requesterID string) {
	workflow, err := s.workflowDef.FindAutoStartWorkflow(ctx)
	if err != nil {
		log.Printf("[ContentService] 查找自动发起流程失败: %v", err)
		return
	}
	if workflow == nil {
		return
	}

	// 同一内容已有未完结的请求则不重复发起
	active, err := s.repos.Request.ListActiveByTarget(ctx, "content", content.ID)
	if err == nil && len(active) > 0 {
		return
	}

	priority := entity.PriorityNormal
	if content.UrgencyLevel == "urgent" {
		priority = entity.PriorityUrgent
	}
	_, err = s.workflow.StartWorkflow(ctx, StartWorkflowReq{
		WorkflowID: workflow.ID,
		TargetType: "content",
		TargetID:   content.ID,
		Notes:      fmt.Sprintf("内容「%s」送审自动发起", content.Title),
		Priority:   priority,
	}, requesterID)
	if err != nil {
		log.Printf("[ContentService] 自动发起审批失败 (content=%s): %v", content.ID, err)
		return
	}
	log.Printf("[ContentService] 内容 %s 已自动发起审批流程「%s」", content.ID, workflow.Name)
}

// BeginGeneration AI 生成开始，直接置为生成中（生成管线不经过转换表）
func (s *ContentService) BeginGeneration(ctx context.Context, contentID string) error {
	return s.setGenerationStatus(ctx, contentID, engine.StateDraft, engine.StateGenerating, "generation_started", nil)
}

// CompleteGeneration AI 生成完成，写入生成的正文
func (s *ContentService) CompleteGeneration(ctx context.Context, contentID, generatedBody string) error {
	return s.setGenerationStatus(ctx, contentID, engine.StateGenerating, engine.StateGenerated, "generation_completed",
		map[string]interface{}{"body": generatedBody})
}

func (s *ContentService) setGenerationStatus(ctx context.Context, contentID, from, to, action string, extra map[string]interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": to, "updated_at": time.Now()}
		for k, v := range extra {
			updates[k] = v
		}
		result := tx.Model(&entity.Content{}).
			Where("id = ? AND status = ?", contentID, from).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("更新生成状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return NewConflict(CodeInvalidAction, fmt.Sprintf("内容不在状态[%s]", from))
		}
		return tx.Create(&entity.ContentActionLog{
			ID:           uuid.New().String(),
			ContentID:    contentID,
			Action:       action,
			FromStatus:   from,
			ToStatus:     to,
			OperatorID:   "system",
			OperatorType: "system",
			CreatedAt:    time.Now(),
		}).Error
	})
}

// AvailableActions 查询内容当前状态下用户可执行的操作
func (s *ContentService) AvailableActions(ctx context.Context, contentID, userID string) ([]engine.Transition, error) {
	content, err := s.repos.Content.FindByID(ctx, contentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("内容", contentID)
		}
		return nil, err
	}
	role, err := s.repos.User.RoleOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询用户角色失败: %w", err)
	}
	return s.machine.AvailableActions(content.Status, role), nil
}

// GetContent 获取内容详情
func (s *ContentService) GetContent(ctx context.Context, id string) (*entity.Content, error) {
	content, err := s.repos.Content.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("内容", id)
		}
		return nil, err
	}
	return content, nil
}

// ListContents 内容列表
func (s *ContentService) ListContents(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]entity.Content, int64, error) {
	return s.repos.Content.List(ctx, filters, page, pageSize)
}

// GetContentLogs 内容操作日志
func (s *ContentService) GetContentLogs(ctx context.Context, contentID string) ([]entity.ContentActionLog, error) {
	return s.repos.Content.ListActionLogs(ctx, contentID)
}
