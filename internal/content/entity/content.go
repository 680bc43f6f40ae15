package entity

import (
	"time"
)

// Content 营销内容实体
// 编辑状态由 engine.NewContentMachine 的转换表管辖
type Content struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	Title        string     `json:"title" gorm:"size:200;not null"`
	Body         string     `json:"body" gorm:"type:text"`
	ContentType  string     `json:"content_type" gorm:"size:50;not null;default:'social_post'"` // social_post/blog/email/ad_copy/landing_page
	Channel      string     `json:"channel" gorm:"size:50"`
	Status       string     `json:"status" gorm:"size:20;not null;default:'draft'"`
	Budget       float64    `json:"budget" gorm:"type:numeric(15,2);default:0"`
	UrgencyLevel string     `json:"urgency_level" gorm:"size:16;default:'normal'"` // normal/urgent
	Tags         StringList `json:"tags" gorm:"type:jsonb"`
	AssetIDs     StringList `json:"asset_ids" gorm:"type:jsonb"`
	CreatedBy    string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	PublishedAt  *time.Time `json:"published_at"`
	ArchivedAt   *time.Time `json:"archived_at"`

	// 关联
	Creator *User `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
}

func (Content) TableName() string {
	return "contents"
}

// ContentActionLog 内容操作日志
type ContentActionLog struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	ContentID    string    `json:"content_id" gorm:"size:36;not null;index"`
	Action       string    `json:"action" gorm:"size:50;not null"`
	FromStatus   string    `json:"from_status" gorm:"size:20"`
	ToStatus     string    `json:"to_status" gorm:"size:20;not null"`
	OperatorID   string    `json:"operator_id" gorm:"size:64;not null"`
	OperatorType string    `json:"operator_type" gorm:"size:20;default:'user'"` // user/system
	Comment      string    `json:"comment" gorm:"type:text"`
	EventData    JSONB     `json:"event_data" gorm:"type:jsonb"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ContentActionLog) TableName() string {
	return "content_action_logs"
}

// ContentAsset 内容素材（存储在对象存储，记录元数据）
type ContentAsset struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	FileName    string    `json:"file_name" gorm:"size:256;not null"`
	ObjectKey   string    `json:"object_key" gorm:"size:512;not null"`
	ContentType string    `json:"content_type" gorm:"size:100"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploaded_by" gorm:"size:32;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ContentAsset) TableName() string {
	return "content_assets"
}
