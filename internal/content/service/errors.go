package service

import (
	"errors"
	"fmt"
	"strings"
)

// 业务错误码
const (
	CodeNotFound              = "NOT_FOUND"
	CodeStageNotFound         = "STAGE_NOT_FOUND"
	CodeForbidden             = "FORBIDDEN"
	CodeInvalidAction         = "INVALID_ACTION"
	CodeMissingComment        = "MISSING_COMMENT"
	CodeWorkflowInactive      = "WORKFLOW_INACTIVE"
	CodeEmptyWorkflow         = "EMPTY_WORKFLOW"
	CodeStaleStage            = "STALE_STAGE"
	CodeMissingDelegateTarget = "MISSING_DELEGATE_TARGET"
	CodeRequestTerminal       = "REQUEST_TERMINAL"
	CodeCannotCancel          = "CANNOT_CANCEL_COMPLETED"
)

// NotFoundError 资源不存在
type NotFoundError struct {
	Code     string
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s不存在: %s", e.Resource, e.ID)
}

// NewNotFound 创建资源不存在错误
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Code: CodeNotFound, Resource: resource, ID: id}
}

// NewStageNotFound 创建阶段不存在错误
func NewStageNotFound(stageID string) *NotFoundError {
	return &NotFoundError{Code: CodeStageNotFound, Resource: "审批阶段", ID: stageID}
}

// ForbiddenError 权限不足，携带可接受的角色集合供调用方纠正
type ForbiddenError struct {
	Code         string
	Message      string
	AllowedRoles []string
}

func (e *ForbiddenError) Error() string {
	if len(e.AllowedRoles) > 0 {
		return fmt.Sprintf("%s（需要角色: %s）", e.Message, strings.Join(e.AllowedRoles, "/"))
	}
	return e.Message
}

// NewForbidden 创建权限错误
func NewForbidden(message string, allowedRoles ...string) *ForbiddenError {
	return &ForbiddenError{Code: CodeForbidden, Message: message, AllowedRoles: allowedRoles}
}

// ValidationError 参数校验失败
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidation 创建校验错误
func NewValidation(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// ConflictError 并发冲突或终态变更冲突
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflict 创建冲突错误
func NewConflict(code, message string) *ConflictError {
	return &ConflictError{Code: code, Message: message}
}

// ErrorCode 提取业务错误码，非业务错误返回空串
func ErrorCode(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Code
	}
	var fb *ForbiddenError
	if errors.As(err, &fb) {
		return fb.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsNotFound 是否资源不存在错误
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsForbidden 是否权限错误
func IsForbidden(err error) bool {
	var fb *ForbiddenError
	return errors.As(err, &fb)
}

// IsConflict 是否冲突错误
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation 是否校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
