package service

import (
	"testing"

	"github.com/bitfantasy/muse/internal/content/entity"
)

func TestGenerateIntentsStageEntered(t *testing.T) {
	intents := GenerateIntents(WorkflowEvent{
		Type:         EventStageEntered,
		RequestID:    "req-001",
		WorkflowName: "内容发布审批",
		StageName:    "法务审核",
		Priority:     NotifyPriorityHigh,
		Recipients:   []string{"u1", "u2", "u1", ""},
	})
	if len(intents) != 2 {
		t.Fatalf("expected deduped recipients, got %d intents", len(intents))
	}
	for _, in := range intents {
		if in.Priority != NotifyPriorityHigh {
			t.Errorf("expected event priority to carry through, got %s", in.Priority)
		}
		if in.EventType != EventStageEntered {
			t.Errorf("unexpected event type %s", in.EventType)
		}
		if in.RequestID != "req-001" {
			t.Errorf("unexpected request id %s", in.RequestID)
		}
	}
}

func TestGenerateIntentsRejectionGoesToRequester(t *testing.T) {
	intents := GenerateIntents(WorkflowEvent{
		Type:         EventWorkflowRejected,
		RequestID:    "req-002",
		WorkflowName: "内容发布审批",
		RequesterID:  "creator-1",
		Comment:      "预算超标",
	})
	if len(intents) != 1 {
		t.Fatalf("expected single intent, got %d", len(intents))
	}
	if intents[0].RecipientID != "creator-1" {
		t.Errorf("rejection should notify the requester, got %s", intents[0].RecipientID)
	}
	if intents[0].Priority != NotifyPriorityHigh {
		t.Errorf("rejection should be high priority, got %s", intents[0].Priority)
	}
}

func TestGenerateIntentsEscalationIsUrgent(t *testing.T) {
	intents := GenerateIntents(WorkflowEvent{
		Type:       EventWorkflowEscalated,
		Recipients: []string{"admin-1", "admin-2"},
	})
	if len(intents) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(intents))
	}
	for _, in := range intents {
		if in.Priority != NotifyPriorityUrgent {
			t.Errorf("escalation should be urgent, got %s", in.Priority)
		}
	}
}

func TestGenerateIntentsDefaultPriority(t *testing.T) {
	intents := GenerateIntents(WorkflowEvent{
		Type:       EventWorkflowStarted,
		Recipients: []string{"u1"},
	})
	if len(intents) != 1 || intents[0].Priority != NotifyPriorityNormal {
		t.Errorf("empty event priority should default to normal, got %+v", intents)
	}
}

func TestGenerateIntentsUnknownEvent(t *testing.T) {
	if got := GenerateIntents(WorkflowEvent{Type: "something_else"}); got != nil {
		t.Errorf("unknown event type should produce no intents, got %v", got)
	}
}

func TestRemainingApprovers(t *testing.T) {
	actions := []entity.ApprovalAction{
		{StageID: "stage-1", ApproverID: "u1", Action: entity.ApprovalActionApprove},
		{StageID: "stage-1", ApproverID: "u2", Action: entity.ApprovalActionRequestChanges},
		{StageID: "stage-2", ApproverID: "u3", Action: entity.ApprovalActionApprove},
	}
	got := RemainingApprovers([]string{"u1", "u2", "u3", "u2"}, actions, "stage-1")
	if len(got) != 2 {
		t.Fatalf("expected u2+u3 remaining, got %v", got)
	}
	for _, id := range got {
		if id == "u1" {
			t.Error("approver who already approved should not be reminded")
		}
	}
}
