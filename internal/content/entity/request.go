package entity

import (
	"time"
)

// 审批请求状态
const (
	RequestStatusPending    = "pending"
	RequestStatusInProgress = "in_progress"
	RequestStatusApproved   = "approved"
	RequestStatusRejected   = "rejected"
	RequestStatusEscalated  = "escalated"
	RequestStatusCancelled  = "cancelled"
	RequestStatusExpired    = "expired"
)

// 请求优先级
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// IsTerminalStatus 是否终态
// escalated 不是终态：升级只提高可见性，不放弃当前阶段
func IsTerminalStatus(status string) bool {
	switch status {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled, RequestStatusExpired:
		return true
	}
	return false
}

// ApprovalRequest 审批请求（每个送审实体一条）
// 不变式: current_stage_id 非空 当且仅当 status ∈ {pending, in_progress, escalated}
type ApprovalRequest struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	WorkflowID      string     `json:"workflow_id" gorm:"size:36;not null;index"`
	TargetType      string     `json:"target_type" gorm:"size:50;not null"` // content/campaign 等
	TargetID        string     `json:"target_id" gorm:"size:36;not null;index"`
	RequesterID     string     `json:"requester_id" gorm:"size:32;not null"`
	CurrentStageID  *string    `json:"current_stage_id" gorm:"size:36"` // nil 表示终态
	Status          string     `json:"status" gorm:"size:20;not null;default:'pending';index"`
	Priority        string     `json:"priority" gorm:"size:16;not null;default:'normal'"`
	Notes           string     `json:"notes" gorm:"type:text"`
	DueDate         *time.Time `json:"due_date"`
	EscalationLevel int        `json:"escalation_level" gorm:"default:0"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	EscalatedAt     *time.Time `json:"escalated_at"`

	// 关联
	Approvals []ApprovalAction  `json:"approvals,omitempty" gorm:"foreignKey:RequestID"`
	Workflow  *ApprovalWorkflow `json:"workflow,omitempty" gorm:"foreignKey:WorkflowID"`
	Requester *User             `json:"requester,omitempty" gorm:"foreignKey:RequesterID"`
}

func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

// 审批动作类型
const (
	ApprovalActionApprove        = "approve"
	ApprovalActionReject         = "reject"
	ApprovalActionRequestChanges = "request_changes"
	ApprovalActionDelegate       = "delegate"
	ApprovalActionEscalate       = "escalate"
	ApprovalActionCancel         = "cancel"
)

// ApprovalAction 审批动作记录（只追加，创建后不可变）
// stage_id 必须是提交时刻请求的 current_stage_id，过期阶段的动作被拒绝
type ApprovalAction struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	RequestID  string    `json:"request_id" gorm:"size:36;not null;index"`
	StageID    string    `json:"stage_id" gorm:"size:36;not null;index"`
	ApproverID string    `json:"approver_id" gorm:"size:32;not null"`
	Action     string    `json:"action" gorm:"size:20;not null"`
	Comment    string    `json:"comment" gorm:"type:text"`
	Metadata   Metadata  `json:"metadata" gorm:"type:jsonb"`
	CreatedAt  time.Time `json:"created_at"`

	// 关联
	Approver *User `json:"approver,omitempty" gorm:"foreignKey:ApproverID"`
}

func (ApprovalAction) TableName() string {
	return "approval_actions"
}
