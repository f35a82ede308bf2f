package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeSystem   NotificationType = "system"
	NotificationTypeQuota    NotificationType = "quota"    // 免费额度用尽
	NotificationTypeSecurity NotificationType = "security" // 密码修改等
)

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    string           `gorm:"size:36;not null;index" json:"user_id"` // Receiver
	Type      NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Message   string           `gorm:"type:text" json:"message"`
	IsRead    bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
