package entity

import (
	"time"
)

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User 用户实体
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	Username     string     `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name         string     `json:"name" gorm:"size:64;not null"`
	Email        string     `json:"email" gorm:"size:128;uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"size:128"`
	AvatarURL    string     `json:"avatar_url" gorm:"size:512"`
	Role         string     `json:"role" gorm:"size:32;not null;default:reviewer"` // reviewer/approver/publisher/admin
	Team         string     `json:"team" gorm:"size:64;index"`
	WebhookURL   string     `json:"webhook_url" gorm:"size:512"` // 通知投递地址，空则跳过通知
	Status       string     `json:"status" gorm:"size:16;not null;default:active"`
	LastActiveAt *time.Time `json:"last_active_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
