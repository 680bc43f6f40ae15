package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	User        *UserRepository
	Content     *ContentRepository
	Workflow    *WorkflowRepository
	Request     *RequestRepository
	RoutingRule *RoutingRuleRepository
	Asset       *AssetRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Content:     NewContentRepository(db),
		Workflow:    NewWorkflowRepository(db),
		Request:     NewRequestRepository(db),
		RoutingRule: NewRoutingRuleRepository(db),
		Asset:       NewAssetRepository(db),
	}
}
