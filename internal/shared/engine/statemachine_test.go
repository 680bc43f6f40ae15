package engine

import (
	"testing"
)

var allStates = []string{
	StateDraft, StateGenerating, StateGenerated, StateReviewing,
	StateApproved, StatePublished, StateArchived,
}

var allActions = []string{
	ActionSubmitForReview, ActionApprove, ActionReject, ActionRequestRevision,
	ActionPublish, ActionRevertToDraft, ActionArchive,
}

// 转换表中定义的合法 (状态, 操作) 对
var definedPairs = map[[2]string]bool{
	{StateDraft, ActionSubmitForReview}:     true,
	{StateDraft, ActionArchive}:             true,
	{StateGenerated, ActionSubmitForReview}: true,
	{StateGenerated, ActionRevertToDraft}:   true,
	{StateGenerated, ActionArchive}:         true,
	{StateReviewing, ActionApprove}:         true,
	{StateReviewing, ActionReject}:          true,
	{StateReviewing, ActionRequestRevision}: true,
	{StateApproved, ActionPublish}:          true,
	{StateApproved, ActionRevertToDraft}:    true,
	{StateApproved, ActionArchive}:          true,
	{StatePublished, ActionArchive}:         true,
	{StateArchived, ActionRevertToDraft}:    true,
}

func TestUndefinedPairsReturnInvalidAction(t *testing.T) {
	m := NewContentMachine()
	actx := ActionContext{Role: RoleAdmin, Comment: "ok"}

	for _, from := range allStates {
		for _, action := range allActions {
			if definedPairs[[2]string{from, action}] {
				continue
			}
			res := m.CanTransition(from, action, actx)
			if res.OK {
				t.Errorf("(%s, %s) should be rejected, got new state %s", from, action, res.NewState)
			}
			if res.Code != CodeInvalidAction {
				t.Errorf("(%s, %s) expected code %s, got %s", from, action, CodeInvalidAction, res.Code)
			}
		}
	}
}

func TestDefinedPairsSucceedWithAdminAndComment(t *testing.T) {
	m := NewContentMachine()
	actx := ActionContext{Role: RoleAdmin, Comment: "有具体意见"}

	for pair := range definedPairs {
		res := m.CanTransition(pair[0], pair[1], actx)
		if !res.OK {
			t.Errorf("(%s, %s) expected success, got %s: %s", pair[0], pair[1], res.Code, res.Message)
		}
		if res.NewState == "" {
			t.Errorf("(%s, %s) returned empty target state", pair[0], pair[1])
		}
	}
}

func TestTransitionTargets(t *testing.T) {
	m := NewContentMachine()
	cases := []struct {
		from, action, to string
	}{
		{StateDraft, ActionSubmitForReview, StateReviewing},
		{StateGenerated, ActionRevertToDraft, StateDraft},
		{StateReviewing, ActionApprove, StateApproved},
		{StateReviewing, ActionReject, StateDraft},
		{StateApproved, ActionPublish, StatePublished},
		{StateApproved, ActionRevertToDraft, StateReviewing},
		{StateArchived, ActionRevertToDraft, StateDraft},
	}
	for _, c := range cases {
		res := m.CanTransition(c.from, c.action, ActionContext{Role: RoleAdmin, Comment: "x"})
		if !res.OK {
			t.Fatalf("(%s, %s) unexpected failure: %s", c.from, c.action, res.Message)
		}
		if res.NewState != c.to {
			t.Errorf("(%s, %s) expected target %s, got %s", c.from, c.action, c.to, res.NewState)
		}
	}
}

func TestMissingComment(t *testing.T) {
	m := NewContentMachine()

	res := m.CanTransition(StateReviewing, ActionReject, ActionContext{Role: RoleApprover})
	if res.OK || res.Code != CodeMissingComment {
		t.Errorf("reject without comment: expected %s, got ok=%v code=%s", CodeMissingComment, res.OK, res.Code)
	}

	res = m.CanTransition(StateReviewing, ActionReject, ActionContext{Role: RoleApprover, Comment: "质量不达标"})
	if !res.OK {
		t.Errorf("reject with comment should succeed, got %s: %s", res.Code, res.Message)
	}

	res = m.CanTransition(StateReviewing, ActionRequestRevision, ActionContext{Role: RoleApprover})
	if res.OK || res.Code != CodeMissingComment {
		t.Errorf("request_revision without comment: expected %s, got ok=%v code=%s", CodeMissingComment, res.OK, res.Code)
	}
}

func TestRoleEnforcement(t *testing.T) {
	m := NewContentMachine()

	// reviewer 不在 approve 的允许角色里
	res := m.CanTransition(StateReviewing, ActionApprove, ActionContext{Role: RoleReviewer})
	if res.OK || res.Code != CodeForbidden {
		t.Fatalf("reviewer approve: expected %s, got ok=%v code=%s", CodeForbidden, res.OK, res.Code)
	}
	if len(res.AllowedRoles) != 2 {
		t.Errorf("expected allowed roles [approver admin], got %v", res.AllowedRoles)
	}

	// 角色未知时同样拒绝
	res = m.CanTransition(StateReviewing, ActionApprove, ActionContext{})
	if res.OK || res.Code != CodeForbidden {
		t.Errorf("unknown role approve: expected %s, got ok=%v code=%s", CodeForbidden, res.OK, res.Code)
	}

	// 无角色限制的转换任何人可执行
	res = m.CanTransition(StateDraft, ActionSubmitForReview, ActionContext{})
	if !res.OK {
		t.Errorf("submit_for_review should not require a role, got %s", res.Code)
	}
}

func TestApprovalStatusLabel(t *testing.T) {
	m := NewContentMachine()
	res := m.CanTransition(StateReviewing, ActionApprove, ActionContext{Role: RoleAdmin})
	if res.ApprovalStatus != "approved" {
		t.Errorf("expected approval status label approved, got %s", res.ApprovalStatus)
	}
	res = m.CanTransition(StateReviewing, ActionReject, ActionContext{Role: RoleAdmin, Comment: "x"})
	if res.ApprovalStatus != "rejected" {
		t.Errorf("expected approval status label rejected, got %s", res.ApprovalStatus)
	}
}

func TestAvailableActionsFilteredByRole(t *testing.T) {
	m := NewContentMachine()

	// reviewing 状态下 reviewer 无可用操作（approve/reject/request_revision 都要 approver/admin）
	if got := m.AvailableActions(StateReviewing, RoleReviewer); len(got) != 0 {
		t.Errorf("reviewer at reviewing: expected 0 actions, got %d", len(got))
	}

	if got := m.AvailableActions(StateReviewing, RoleApprover); len(got) != 3 {
		t.Errorf("approver at reviewing: expected 3 actions, got %d", len(got))
	}

	// approved 状态下 publisher 只能 publish
	got := m.AvailableActions(StateApproved, RolePublisher)
	if len(got) != 1 || got[0].Action != ActionPublish {
		t.Errorf("publisher at approved: expected [publish], got %v", got)
	}

	// generating 没有出边
	if got := m.AvailableActions(StateGenerating, RoleAdmin); len(got) != 0 {
		t.Errorf("generating should have no actions, got %d", len(got))
	}
}
