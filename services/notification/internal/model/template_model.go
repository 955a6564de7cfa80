package model

import "time"

type TemplateModel struct {
	ID            string    `gorm:"column:id;type:varchar(64);primaryKey"`
	Code          string    `gorm:"column:code;type:varchar(100);not null;index:idx_notification_templates_active_code,unique,where:active = true"`
	TitleTemplate string    `gorm:"column:title_template;type:text;not null"`
	BodyTemplate  string    `gorm:"column:body_template;type:text;not null"`
	DefaultKind   string    `gorm:"column:default_kind;type:varchar(32);not null;default:info"`
	DefaultIcon   string    `gorm:"column:default_icon;type:varchar(64)"`
	Category      string    `gorm:"column:category;type:varchar(64);not null;default:general"`
	Active        bool      `gorm:"column:active;not null"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (TemplateModel) TableName() string {
	return "notification_templates"
}
