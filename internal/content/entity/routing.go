package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 路由动作类型（封闭枚举）
type RoutingActionType string

const (
	RouteAssignToUser  RoutingActionType = "assign_to_user"
	RouteAssignToRole  RoutingActionType = "assign_to_role"
	RouteLoadBalance   RoutingActionType = "load_balance"
	RouteParallelRoute RoutingActionType = "parallel_route"
	RouteEscalate      RoutingActionType = "escalate"
)

// RoutingAction 路由动作
type RoutingAction struct {
	Type           RoutingActionType `json:"type"`
	UserIDs        []string          `json:"user_ids,omitempty"`   // assign_to_user
	Roles          []string          `json:"roles,omitempty"`      // assign_to_role/load_balance/parallel_route/escalate
	MaxWorkload    int               `json:"max_workload,omitempty"`    // load_balance: 达到上限的成员直接排除
	MaxParallel    int               `json:"max_parallel,omitempty"`    // parallel_route: 最多选取N人
	MatchExpertise bool              `json:"match_expertise,omitempty"` // assign_to_role: 按内容类型过滤专长
}

// RoutingActionList 路由动作数组JSONB类型
type RoutingActionList []RoutingAction

func (l RoutingActionList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *RoutingActionList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan RoutingActionList: %v", value)
	}
	return json.Unmarshal(bytes, l)
}

// RoutingRule 路由规则
// priority 越小越先求值；所有条件为 AND；命中规则累加审批人，不短路
type RoutingRule struct {
	ID          string            `json:"id" gorm:"primaryKey;size:36"`
	Name        string            `json:"name" gorm:"size:100;not null"`
	Description string            `json:"description" gorm:"type:text"`
	Priority    int               `json:"priority" gorm:"default:100;index"`
	Conditions  ConditionList     `json:"conditions" gorm:"type:jsonb;not null"`
	Actions     RoutingActionList `json:"actions" gorm:"type:jsonb;not null"`
	IsActive    bool              `json:"is_active" gorm:"default:true"`
	CreatedBy   string            `json:"created_by" gorm:"size:32"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (RoutingRule) TableName() string {
	return "routing_rules"
}

// 审批人可用性
const (
	AvailabilityAvailable = "available"
	AvailabilityBusy      = "busy"
	AvailabilityAway      = "away"
	AvailabilityOffline   = "offline"
)

// ApproverMetrics 审批人指标（尽力而为的缓存值，不是正确性依据）
type ApproverMetrics struct {
	UserID              string    `json:"user_id"`
	AverageResponseTime float64   `json:"average_response_time"` // 小时
	ApprovalRate        float64   `json:"approval_rate"`         // 0~1
	CurrentWorkload     int       `json:"current_workload"`
	ExpertiseAreas      []string  `json:"expertise_areas"`
	Availability        string    `json:"availability"`
	LastActiveAt        time.Time `json:"last_active_at"`
}

// DefaultApproverMetrics 无数据时的默认指标
func DefaultApproverMetrics(userID string) *ApproverMetrics {
	return &ApproverMetrics{
		UserID:              userID,
		AverageResponseTime: 24,
		ApprovalRate:        0.8,
		Availability:        AvailabilityAvailable,
		LastActiveAt:        time.Now(),
	}
}

// HasExpertise 专长是否覆盖指定内容类型（general 视为通配）
func (m *ApproverMetrics) HasExpertise(contentType string) bool {
	for _, area := range m.ExpertiseAreas {
		if area == contentType || area == "general" {
			return true
		}
	}
	return false
}
