package model

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationModel struct {
	ID          string         `gorm:"column:id;type:varchar(64);primaryKey"`
	RecipientID string         `gorm:"column:recipient_id;type:varchar(64);not null;index:idx_notifications_recipient_state"`
	SenderID    *string        `gorm:"column:sender_id;type:varchar(64)"`
	Title       string         `gorm:"column:title;type:varchar(255);not null"`
	Body        string         `gorm:"column:body;type:text;not null"`
	Kind        string         `gorm:"column:kind;type:varchar(32);not null;default:info"`
	Category    string         `gorm:"column:category;type:varchar(64);not null;default:general"`
	ExtraData   datatypes.JSON `gorm:"column:extra_data"`
	ActionURL   *string        `gorm:"column:action_url;type:text"`
	Icon        string         `gorm:"column:icon;type:varchar(64)"`
	Priority    string         `gorm:"column:priority;type:varchar(16);not null;default:normal"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	ReadAt      *time.Time     `gorm:"column:read_at"`
	ExpiresAt   *time.Time     `gorm:"column:expires_at"`
	State       string         `gorm:"column:state;type:varchar(16);not null;default:active;index:idx_notifications_recipient_state"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// NotificationRow is a notification joined with its sender's display data.
type NotificationRow struct {
	NotificationModel
	SenderName *string `gorm:"column:sender_name"`
	SenderRole *string `gorm:"column:sender_role"`
}
