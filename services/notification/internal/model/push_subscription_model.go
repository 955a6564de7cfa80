package model

import "time"

type PushSubscriptionModel struct {
	ID           string    `gorm:"column:id;type:varchar(64);primaryKey"`
	UserID       string    `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:idx_push_subscriptions_user_endpoint"`
	Endpoint     string    `gorm:"column:endpoint;type:text;not null;uniqueIndex:idx_push_subscriptions_user_endpoint"`
	P256dhKey    string    `gorm:"column:p256dh;type:text;not null"`
	AuthKey      string    `gorm:"column:auth_key;type:text;not null"`
	DeviceLabel  string    `gorm:"column:device_label;type:varchar(255)"`
	BrowserLabel string    `gorm:"column:browser_label;type:varchar(255)"`
	Active       bool      `gorm:"column:active;not null"`
	SubscribedAt time.Time `gorm:"column:subscribed_at;not null"`
}

func (PushSubscriptionModel) TableName() string {
	return "push_subscriptions"
}
