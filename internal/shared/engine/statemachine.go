package engine

import "fmt"

// 结果错误码
const (
	CodeInvalidAction  = "INVALID_ACTION"
	CodeForbidden      = "FORBIDDEN"
	CodeMissingComment = "MISSING_COMMENT"
)

// 内容编辑状态
const (
	StateDraft      = "draft"
	StateGenerating = "generating"
	StateGenerated  = "generated"
	StateReviewing  = "reviewing"
	StateApproved   = "approved"
	StatePublished  = "published"
	StateArchived   = "archived"
)

// 内容操作
const (
	ActionSubmitForReview = "submit_for_review"
	ActionApprove         = "approve"
	ActionReject          = "reject"
	ActionRequestRevision = "request_revision"
	ActionPublish         = "publish"
	ActionRevertToDraft   = "revert_to_draft"
	ActionArchive         = "archive"
)

// 角色
const (
	RoleReviewer  = "reviewer"
	RoleApprover  = "approver"
	RolePublisher = "publisher"
	RoleAdmin     = "admin"
)

// Transition 状态转换规则（声明式）
type Transition struct {
	From           string   // 起始状态
	Action         string   // 触发操作
	To             string   // 目标状态
	ApprovalStatus string   // 转换附带的审批状态标签（可为空）
	Roles          []string // 允许执行的角色，空表示不限
	RequireComment bool     // 是否必须填写意见
}

// ActionContext 转换上下文
type ActionContext struct {
	Role    string // 操作者角色，空表示未知
	Comment string
}

// Result 转换校验结果
// 校验失败属于预期结果，通过 Code/Message 返回，不作为 error 抛出
type Result struct {
	OK             bool     `json:"ok"`
	NewState       string   `json:"new_state,omitempty"`
	ApprovalStatus string   `json:"approval_status,omitempty"`
	Code           string   `json:"code,omitempty"`
	Message        string   `json:"message,omitempty"`
	AllowedRoles   []string `json:"allowed_roles,omitempty"`
}

// Machine 转换表驱动的单实体状态机
type Machine struct {
	name        string
	transitions []Transition
}

// NewMachine 创建状态机
func NewMachine(name string, transitions []Transition) *Machine {
	return &Machine{name: name, transitions: transitions}
}

// Name 状态机名称
func (m *Machine) Name() string {
	return m.name
}

// CanTransition 校验 (状态, 操作) 是否允许执行
func (m *Machine) CanTransition(from, action string, actx ActionContext) Result {
	var t *Transition
	for i := range m.transitions {
		if m.transitions[i].From == from && m.transitions[i].Action == action {
			t = &m.transitions[i]
			break
		}
	}
	if t == nil {
		return Result{
			Code:    CodeInvalidAction,
			Message: fmt.Sprintf("状态[%s]不允许操作[%s]", from, action),
		}
	}

	if len(t.Roles) > 0 {
		// 角色未知时不能盲目放行
		if actx.Role == "" || !roleAllowed(t.Roles, actx.Role) {
			return Result{
				Code:         CodeForbidden,
				Message:      fmt.Sprintf("操作[%s]需要角色: %v", action, t.Roles),
				AllowedRoles: t.Roles,
			}
		}
	}

	if t.RequireComment && actx.Comment == "" {
		return Result{
			Code:    CodeMissingComment,
			Message: fmt.Sprintf("操作[%s]必须填写意见", action),
		}
	}

	return Result{OK: true, NewState: t.To, ApprovalStatus: t.ApprovalStatus}
}

// ExecuteTransition 校验并返回目标状态
// 状态机本身无副作用，持久化由调用方负责
func (m *Machine) ExecuteTransition(from, action string, actx ActionContext) Result {
	return m.CanTransition(from, action, actx)
}

// AvailableActions 返回指定状态下角色可执行的转换
func (m *Machine) AvailableActions(from, role string) []Transition {
	var out []Transition
	for _, t := range m.transitions {
		if t.From != from {
			continue
		}
		if len(t.Roles) > 0 && !roleAllowed(t.Roles, role) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func roleAllowed(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// NewContentMachine 内容编辑生命周期状态机
// 转换表是权威定义，新增转换必须在此登记
func NewContentMachine() *Machine {
	return NewMachine("content", []Transition{
		{From: StateDraft, Action: ActionSubmitForReview, To: StateReviewing, ApprovalStatus: "pending"},
		{From: StateDraft, Action: ActionArchive, To: StateArchived},

		{From: StateGenerated, Action: ActionSubmitForReview, To: StateReviewing, ApprovalStatus: "pending"},
		{From: StateGenerated, Action: ActionRevertToDraft, To: StateDraft},
		{From: StateGenerated, Action: ActionArchive, To: StateArchived},

		{From: StateReviewing, Action: ActionApprove, To: StateApproved, ApprovalStatus: "approved",
			Roles: []string{RoleApprover, RoleAdmin}},
		{From: StateReviewing, Action: ActionReject, To: StateDraft, ApprovalStatus: "rejected",
			Roles: []string{RoleApprover, RoleAdmin}, RequireComment: true},
		{From: StateReviewing, Action: ActionRequestRevision, To: StateDraft, ApprovalStatus: "changes_requested",
			Roles: []string{RoleApprover, RoleAdmin}, RequireComment: true},

		{From: StateApproved, Action: ActionPublish, To: StatePublished,
			Roles: []string{RolePublisher, RoleAdmin}},
		{From: StateApproved, Action: ActionRevertToDraft, To: StateReviewing, ApprovalStatus: "pending",
			Roles: []string{RoleAdmin}},
		{From: StateApproved, Action: ActionArchive, To: StateArchived,
			Roles: []string{RoleAdmin}},

		{From: StatePublished, Action: ActionArchive, To: StateArchived,
			Roles: []string{RoleAdmin}},

		{From: StateArchived, Action: ActionRevertToDraft, To: StateDraft,
			Roles: []string{RoleAdmin}},
	})
}
