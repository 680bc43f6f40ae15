package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/muse/internal/content/entity"
)

func newTestRouting() *RoutingService {
	return NewRoutingService(nil, NewMetricsCache(nil))
}

func seedMetric(t *testing.T, s *RoutingService, userID string, responseHours, approvalRate float64, workload int, availability string, expertise ...string) {
	t.Helper()
	s.cache.Set(context.Background(), &entity.ApproverMetrics{
		UserID:              userID,
		AverageResponseTime: responseHours,
		ApprovalRate:        approvalRate,
		CurrentWorkload:     workload,
		ExpertiseAreas:      expertise,
		Availability:        availability,
	})
}

func TestEvaluateCondition(t *testing.T) {
	s := newTestRouting()
	rctx := RoutingContext{
		RequesterRole: "reviewer",
		ContentType:   "video_script",
		Budget:        5000,
		UrgencyLevel:  "urgent",
	}

	cases := []struct {
		name string
		cond entity.ApprovalCondition
		want bool
	}{
		{"role equals", entity.ApprovalCondition{Type: entity.ConditionUserRole, Operator: entity.OpEquals, Value: "reviewer"}, true},
		{"role equals miss", entity.ApprovalCondition{Type: entity.ConditionUserRole, Operator: entity.OpEquals, Value: "admin"}, false},
		{"role not_equals", entity.ApprovalCondition{Type: entity.ConditionUserRole, Operator: entity.OpNotEquals, Value: "admin"}, true},
		{"content equals", entity.ApprovalCondition{Type: entity.ConditionContentType, Operator: entity.OpEquals, Value: "video_script"}, true},
		{"content contains", entity.ApprovalCondition{Type: entity.ConditionContentType, Operator: entity.OpContains, Value: "video"}, true},
		{"content contains empty value", entity.ApprovalCondition{Type: entity.ConditionContentType, Operator: entity.OpContains, Value: ""}, false},
		{"budget greater_than", entity.ApprovalCondition{Type: entity.ConditionBudgetThreshold, Operator: entity.OpGreaterThan, Threshold: 1000}, true},
		{"budget greater_than miss", entity.ApprovalCondition{Type: entity.ConditionBudgetThreshold, Operator: entity.OpGreaterThan, Threshold: 5000}, false},
		{"budget less_than", entity.ApprovalCondition{Type: entity.ConditionBudgetThreshold, Operator: entity.OpLessThan, Threshold: 10000}, true},
		{"budget equals", entity.ApprovalCondition{Type: entity.ConditionBudgetThreshold, Operator: entity.OpEquals, Threshold: 5000}, true},
		{"custom urgent", entity.ApprovalCondition{Type: entity.ConditionCustom, Value: "urgent"}, true},
		{"custom unknown token", entity.ApprovalCondition{Type: entity.ConditionCustom, Value: "vip"}, false},
		{"unknown type", entity.ApprovalCondition{Type: "region", Operator: entity.OpEquals, Value: "cn"}, false},
		{"unsupported operator for role", entity.ApprovalCondition{Type: entity.ConditionUserRole, Operator: entity.OpGreaterThan, Value: "reviewer"}, false},
	}
	for _, tc := range cases {
		if got := s.evaluateCondition(tc.cond, rctx); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestRuleMatchesAllConditions(t *testing.T) {
	s := newTestRouting()
	rctx := RoutingContext{RequesterRole: "reviewer", Budget: 5000}

	rule := entity.RoutingRule{
		Conditions: entity.ConditionList{
			{Type: entity.ConditionUserRole, Operator: entity.OpEquals, Value: "reviewer"},
			{Type: entity.ConditionBudgetThreshold, Operator: entity.OpGreaterThan, Threshold: 1000},
		},
	}
	if !s.ruleMatches(rule, rctx) {
		t.Error("expected rule with all matching conditions to match")
	}

	rule.Conditions[1].Threshold = 10000
	if s.ruleMatches(rule, rctx) {
		t.Error("expected AND semantics: one failing condition rejects the rule")
	}

	empty := entity.RoutingRule{}
	if s.ruleMatches(empty, rctx) {
		t.Error("expected rule without conditions not to match")
	}
}

func TestApplyActionLoadBalance(t *testing.T) {
	s := newTestRouting()
	members := []entity.User{
		{ID: "u1", Role: "approver"},
		{ID: "u2", Role: "approver"},
		{ID: "u3", Role: "approver"},
		{ID: "u4", Role: "reviewer"},
	}
	seedMetric(t, s, "u1", 10, 0.9, 5, entity.AvailabilityAvailable)
	seedMetric(t, s, "u2", 10, 0.9, 2, entity.AvailabilityAvailable)
	seedMetric(t, s, "u3", 10, 0.9, 1, entity.AvailabilityOffline)

	got := s.applyAction(context.Background(), entity.RoutingAction{
		Type:  entity.RouteLoadBalance,
		Roles: []string{"approver"},
	}, RoutingContext{}, members)
	if len(got) != 1 || got[0] != "u2" {
		t.Errorf("expected lowest-workload available approver u2, got %v", got)
	}

	// 工作量达到上限者排除
	got = s.applyAction(context.Background(), entity.RoutingAction{
		Type:        entity.RouteLoadBalance,
		Roles:       []string{"approver"},
		MaxWorkload: 2,
	}, RoutingContext{}, members)
	if len(got) != 0 {
		t.Errorf("expected no approver under workload cap 2, got %v", got)
	}
}

func TestApplyActionParallelRoute(t *testing.T) {
	s := newTestRouting()
	members := []entity.User{
		{ID: "u1", Role: "reviewer"},
		{ID: "u2", Role: "reviewer"},
		{ID: "u3", Role: "reviewer"},
		{ID: "u4", Role: "reviewer"},
	}
	seedMetric(t, s, "u2", 10, 0.9, 0, entity.AvailabilityOffline)

	got := s.applyAction(context.Background(), entity.RoutingAction{
		Type:        entity.RouteParallelRoute,
		Roles:       []string{"reviewer"},
		MaxParallel: 2,
	}, RoutingContext{}, members)
	if len(got) != 2 {
		t.Fatalf("expected 2 approvers, got %v", got)
	}
	for _, id := range got {
		if id == "u2" {
			t.Error("offline member should be skipped by parallel_route")
		}
	}
}

func TestApplyActionExpertiseFilter(t *testing.T) {
	s := newTestRouting()
	members := []entity.User{
		{ID: "u1", Role: "approver"},
		{ID: "u2", Role: "approver"},
		{ID: "u3", Role: "approver"},
	}
	seedMetric(t, s, "u1", 10, 0.9, 0, entity.AvailabilityAvailable, "video_script")
	seedMetric(t, s, "u2", 10, 0.9, 0, entity.AvailabilityAvailable, "blog_post")
	seedMetric(t, s, "u3", 10, 0.9, 0, entity.AvailabilityAvailable, "general")

	got := s.applyAction(context.Background(), entity.RoutingAction{
		Type:           entity.RouteAssignToRole,
		Roles:          []string{"approver"},
		MatchExpertise: true,
	}, RoutingContext{ContentType: "video_script"}, members)

	if len(got) != 2 {
		t.Fatalf("expected matching + general expertise, got %v", got)
	}
	for _, id := range got {
		if id == "u2" {
			t.Error("approver without matching expertise should be filtered out")
		}
	}
}

func TestOptimizeSelectionRanking(t *testing.T) {
	s := newTestRouting()
	// u1: score = (1/20)*0.8 = 0.04; u2: score = (1/10)*0.8 = 0.08
	seedMetric(t, s, "u1", 20, 0.8, 0, entity.AvailabilityAvailable)
	seedMetric(t, s, "u2", 10, 0.8, 0, entity.AvailabilityAvailable)
	seedMetric(t, s, "u3", 5, 0.9, 0, entity.AvailabilityOffline)

	got := s.optimizeSelection(context.Background(), []string{"u1", "unknown", "u2", "u3"})
	if len(got) != 3 {
		t.Fatalf("expected 3 after dropping offline, got %v", got)
	}
	if got[0] != "u2" || got[1] != "u1" {
		t.Errorf("expected responsiveness-weighted order [u2 u1], got %v", got)
	}
	if got[2] != "unknown" {
		t.Errorf("expected unranked approver last, got %v", got)
	}
}

func TestEstimateTimeParallelVsSequential(t *testing.T) {
	s := newTestRouting()
	seedMetric(t, s, "u1", 10, 0.8, 0, entity.AvailabilityAvailable)
	seedMetric(t, s, "u2", 30, 0.8, 0, entity.AvailabilityAvailable)

	parallelStage := &entity.ApprovalStage{ApproversRequired: 1}
	sequentialStage := &entity.ApprovalStage{ApproversRequired: 2}
	workflow := &entity.ApprovalWorkflow{}

	got := s.estimateTime(context.Background(), RoutingContext{Workflow: workflow, Stage: parallelStage}, []string{"u1", "u2"})
	if got != 30 {
		t.Errorf("parallel estimate should be the slowest approver (30h), got %.1f", got)
	}

	got = s.estimateTime(context.Background(), RoutingContext{Workflow: workflow, Stage: sequentialStage}, []string{"u1", "u2"})
	if got != 40 {
		t.Errorf("sequential estimate should be the sum (40h), got %.1f", got)
	}

	// 全员无指标时回退到整体默认值
	got = s.estimateTime(context.Background(), RoutingContext{Workflow: workflow, Stage: sequentialStage}, []string{"x1", "x2"})
	if got != defaultOverallHours {
		t.Errorf("expected default %vh for unknown approvers, got %.1f", defaultOverallHours, got)
	}
}

func TestConfidenceFormula(t *testing.T) {
	s := newTestRouting()
	seedMetric(t, s, "u1", 10, 0.8, 0, entity.AvailabilityAvailable, "video_script")
	seedMetric(t, s, "u2", 10, 0.8, 0, entity.AvailabilityBusy)

	// available 1/2, expertise 1/2: 0.5 + 0.3*0.5 + 0.2*0.5 = 0.75
	got := s.confidence(context.Background(), RoutingContext{ContentType: "video_script"}, []string{"u1", "u2"})
	if got < 0.749 || got > 0.751 {
		t.Errorf("expected confidence 0.75, got %.3f", got)
	}

	if got := s.confidence(context.Background(), RoutingContext{}, nil); got != 0.5 {
		t.Errorf("expected baseline 0.5 for empty approver set, got %.3f", got)
	}
}

func TestStaticApproversFallbackRoles(t *testing.T) {
	s := newTestRouting()
	members := []entity.User{
		{ID: "u1", Role: "reviewer"},
		{ID: "u2", Role: "publisher"},
		{ID: "u3", Role: "approver"},
	}

	// 显式审批人优先
	stage := &entity.ApprovalStage{Approvers: entity.StringList{"x1", "x1", "x2"}}
	got := s.staticApprovers(stage, members)
	if len(got) != 2 {
		t.Errorf("expected deduped explicit approvers, got %v", got)
	}

	// 未声明角色时回退到默认审批角色集
	stage = &entity.ApprovalStage{}
	got = s.staticApprovers(stage, members)
	if len(got) != 2 {
		t.Fatalf("expected reviewer+approver members, got %v", got)
	}
	for _, id := range got {
		if id == "u2" {
			t.Error("publisher should not match default approver roles")
		}
	}
}
