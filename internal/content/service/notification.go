package service

import (
	"fmt"

	"github.com/bitfantasy/muse/internal/content/entity"
)

// 工作流事件类型
const (
	EventWorkflowStarted   = "workflow_started"
	EventStageEntered      = "stage_entered"
	EventStageCompleted    = "stage_completed"
	EventWorkflowCompleted = "workflow_completed"
	EventWorkflowRejected  = "workflow_rejected"
	EventWorkflowCancelled = "workflow_cancelled"
	EventWorkflowEscalated = "workflow_escalated"
	EventChangesRequested  = "changes_requested"
	EventDelegated         = "delegated"
	EventApprovalReminder  = "approval_reminder"
)

// WorkflowEvent 工作流事件，引擎产出，通知意图生成器消费
type WorkflowEvent struct {
	Type        string   `json:"type"`
	RequestID   string   `json:"request_id"`
	WorkflowName string  `json:"workflow_name"`
	StageID     string   `json:"stage_id,omitempty"`
	StageName   string   `json:"stage_name,omitempty"`
	TargetType  string   `json:"target_type"`
	TargetID    string   `json:"target_id"`
	RequesterID string   `json:"requester_id"`
	ActorID     string   `json:"actor_id,omitempty"`
	Comment     string   `json:"comment,omitempty"`
	Priority    string   `json:"priority"`
	Recipients  []string `json:"recipients,omitempty"` // 阶段进入事件的目标审批人
}

// 通知优先级
const (
	NotifyPriorityLow    = "low"
	NotifyPriorityNormal = "normal"
	NotifyPriorityHigh   = "high"
	NotifyPriorityUrgent = "urgent"
)

// NotificationIntent 通知意图，只描述该通知谁、说什么，不负责投递
type NotificationIntent struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Priority    string `json:"priority"`
	RequestID   string `json:"request_id"`
	EventType   string `json:"event_type"`
}

// GenerateIntents 把工作流事件翻译成通知意图列表
// 纯函数，无副作用；未知事件类型返回空列表
func GenerateIntents(event WorkflowEvent) []NotificationIntent {
	priority := event.Priority
	if priority == "" {
		priority = NotifyPriorityNormal
	}

	switch event.Type {
	case EventWorkflowStarted, EventStageEntered:
		intents := make([]NotificationIntent, 0, len(event.Recipients))
		for _, uid := range dedupe(event.Recipients) {
			intents = append(intents, NotificationIntent{
				RecipientID: uid,
				Title:       "待审批",
				Message:     fmt.Sprintf("「%s」进入审批阶段「%s」，等待你的处理", event.WorkflowName, event.StageName),
				Priority:    priority,
				RequestID:   event.RequestID,
				EventType:   event.Type,
			})
		}
		return intents

	case EventApprovalReminder:
		intents := make([]NotificationIntent, 0, len(event.Recipients))
		for _, uid := range dedupe(event.Recipients) {
			intents = append(intents, NotificationIntent{
				RecipientID: uid,
				Title:       "审批提醒",
				Message:     fmt.Sprintf("「%s」阶段「%s」仍在等待你的审批", event.WorkflowName, event.StageName),
				Priority:    priority,
				RequestID:   event.RequestID,
				EventType:   event.Type,
			})
		}
		return intents

	case EventStageCompleted:
		return []NotificationIntent{{
			RecipientID: event.RequesterID,
			Title:       "阶段完成",
			Message:     fmt.Sprintf("「%s」的阶段「%s」已完成", event.WorkflowName, event.StageName),
			Priority:    NotifyPriorityLow,
			RequestID:   event.RequestID,
			EventType:   event.Type,
		}}

	case EventWorkflowCompleted:
		return []NotificationIntent{{
			RecipientID: event.RequesterID,
			Title:       "审批通过",
			Message:     fmt.Sprintf("「%s」已全部审批通过", event.WorkflowName),
			Priority:    priority,
			RequestID:   event.RequestID,
			EventType:   event.Type,
		}}

	case EventWorkflowRejected:
		msg := fmt.Sprintf("「%s」被驳回", event.WorkflowName)
		if event.Comment != "" {
			msg = fmt.Sprintf("%s：%s", msg, event.Comment)
		}
		return []NotificationIntent{{
			RecipientID: event.RequesterID,
			Title:       "审批驳回",
			Message:     msg,
			Priority:    NotifyPriorityHigh,
			RequestID:   event.RequestID,
			EventType:   event.Type,
		}}

	case EventChangesRequested:
		msg := fmt.Sprintf("「%s」被要求修改", event.WorkflowName)
		if event.Comment != "" {
			msg = fmt.Sprintf("%s：%s", msg, event.Comment)
		}
		return []NotificationIntent{{
			RecipientID: event.RequesterID,
			Title:       "请求修改",
			Message:     msg,
			Priority:    priority,
			RequestID:   event.RequestID,
			EventType:   event.Type,
		}}

	case EventDelegated:
		intents := make([]NotificationIntent, 0, len(event.Recipients))
		for _, uid := range dedupe(event.Recipients) {
			intents = append(intents, NotificationIntent{
				RecipientID: uid,
				Title:       "审批委托",
				Message:     fmt.Sprintf("「%s」阶段「%s」的审批被委托给你处理", event.WorkflowName, event.StageName),
				Priority:    priority,
				RequestID:   event.RequestID,
				EventType:   event.Type,
			})
		}
		return intents

	case EventWorkflowEscalated:
		intents := make([]NotificationIntent, 0, len(event.Recipients)+1)
		for _, uid := range dedupe(event.Recipients) {
			intents = append(intents, NotificationIntent{
				RecipientID: uid,
				Title:       "审批升级",
				Message:     fmt.Sprintf("「%s」阶段「%s」已升级，需要关注", event.WorkflowName, event.StageName),
				Priority:    NotifyPriorityUrgent,
				RequestID:   event.RequestID,
				EventType:   event.Type,
			})
		}
		return intents

	case EventWorkflowCancelled:
		return []NotificationIntent{{
			RecipientID: event.RequesterID,
			Title:       "审批取消",
			Message:     fmt.Sprintf("「%s」的审批已取消", event.WorkflowName),
			Priority:    NotifyPriorityLow,
			RequestID:   event.RequestID,
			EventType:   event.Type,
		}}
	}

	return nil
}

// RemainingApprovers 计算阶段内尚未 approve 的审批人，用于提醒通知
func RemainingApprovers(candidates []string, actions []entity.ApprovalAction, stageID string) []string {
	acted := make(map[string]bool)
	for _, a := range actions {
		if a.StageID == stageID && a.Action == entity.ApprovalActionApprove {
			acted[a.ApproverID] = true
		}
	}
	var remaining []string
	for _, uid := range dedupe(candidates) {
		if !acted[uid] {
			remaining = append(remaining, uid)
		}
	}
	return remaining
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
