package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 条件类型（封闭枚举，新增类型必须在 service 的求值 switch 中登记）
type ConditionType string

const (
	ConditionUserRole        ConditionType = "user_role"
	ConditionContentType     ConditionType = "content_type"
	ConditionBudgetThreshold ConditionType = "budget_threshold"
	ConditionCustom          ConditionType = "custom"
)

// 条件操作符
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
)

// ApprovalCondition 审批条件
// user_role/content_type/custom 用 Value，budget_threshold 用 Threshold
type ApprovalCondition struct {
	Type      ConditionType     `json:"type"`
	Operator  ConditionOperator `json:"operator"`
	Value     string            `json:"value,omitempty"`
	Threshold float64           `json:"threshold,omitempty"`
}

// ConditionList 条件数组JSONB类型
type ConditionList []ApprovalCondition

func (l ConditionList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *ConditionList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan ConditionList: %v", value)
	}
	return json.Unmarshal(bytes, l)
}

// ApprovalWorkflow 审批流程定义
// 一旦有请求引用即视为不可变，只允许切换 is_active；不做物理删除
type ApprovalWorkflow struct {
	ID                  string     `json:"id" gorm:"primaryKey;size:36"`
	Name                string     `json:"name" gorm:"size:200;not null"`
	Description         string     `json:"description" gorm:"type:text"`
	Version             int        `json:"version" gorm:"default:1"`
	IsActive            bool       `json:"is_active" gorm:"default:true"`
	AllowParallelStages bool       `json:"allow_parallel_stages" gorm:"default:false"`
	RequireAllApprovers bool       `json:"require_all_approvers" gorm:"default:false"`
	AutoStart           bool       `json:"auto_start" gorm:"default:false"`
	DefaultTimeoutHours int        `json:"default_timeout_hours" gorm:"default:72"`
	CreatedBy           string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	// 关联
	Stages []ApprovalStage `json:"stages,omitempty" gorm:"foreignKey:WorkflowID"`
}

func (ApprovalWorkflow) TableName() string {
	return "approval_workflows"
}

// ApprovalStage 审批阶段
// StageOrder 在同一流程内严格递增，定义全序；不要求连续
type ApprovalStage struct {
	ID                string        `json:"id" gorm:"primaryKey;size:36"`
	WorkflowID        string        `json:"workflow_id" gorm:"size:36;not null;index"`
	Name              string        `json:"name" gorm:"size:100;not null"`
	StageOrder        int           `json:"order" gorm:"column:stage_order;not null"`
	ApproversRequired int           `json:"approvers_required" gorm:"not null;default:1"`
	Approvers         StringList    `json:"approvers" gorm:"type:jsonb"`      // 显式审批人ID
	ApproverRoles     StringList    `json:"approver_roles" gorm:"type:jsonb"` // 或按角色匹配
	SkipConditions    ConditionList `json:"skip_conditions" gorm:"type:jsonb"`
	TimeoutHours      *int          `json:"timeout_hours"`
	EscalationRoles   StringList    `json:"escalation_roles" gorm:"type:jsonb"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (ApprovalStage) TableName() string {
	return "approval_stages"
}
