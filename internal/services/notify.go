package services

import (
	"context"
	"postbase/internal/models"

	"gorm.io/gorm"
)

// Notify 给用户写一条站内通知
func Notify(ctx context.Context, db *gorm.DB, userID string, typ models.NotificationType, message string) error {
	n := models.Notification{
		UserID:  userID,
		Type:    typ,
		Message: message,
	}
	return db.WithContext(ctx).Create(&n).Error
}

// UnreadCount 未读通知数
func UnreadCount(ctx context.Context, db *gorm.DB, userID string) int64 {
	var count int64
	db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count)
	return count
}
