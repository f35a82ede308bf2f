package handlers

import (
	"net/http"
	"postbase/internal/middleware"
	"postbase/internal/models"
	"postbase/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	db *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{db: db}
}

// List GET /api/v1/notifications，最近 50 条
func (h *NotificationHandler) List(c *gin.Context) {
	uid := c.GetString(middleware.CurrentUserIDKey)

	var notifications []models.Notification
	err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", uid).
		Order("created_at DESC, id DESC").
		Limit(50).
		Find(&notifications).Error
	if err != nil {
		failBackend(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   notifications,
		"unread": services.UnreadCount(c.Request.Context(), h.db, uid),
		"error":  nil,
	})
}

// Read POST /api/v1/notifications/:id/read
func (h *NotificationHandler) Read(c *gin.Context) {
	uid := c.GetString(middleware.CurrentUserIDKey)

	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", c.Param("id"), uid).
		Update("is_read", true)
	if res.Error != nil {
		failBackend(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, http.StatusNotFound, NewApiError(http.StatusNotFound))
		return
	}
	ok(c, nil)
}

// Delete DELETE /api/v1/notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	uid := c.GetString(middleware.CurrentUserIDKey)

	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", c.Param("id"), uid).
		Delete(&models.Notification{})
	if res.Error != nil {
		failBackend(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, http.StatusNotFound, NewApiError(http.StatusNotFound))
		return
	}
	ok(c, nil)
}

// ReadAll POST /api/v1/notifications/read-all
func (h *NotificationHandler) ReadAll(c *gin.Context) {
	uid := c.GetString(middleware.CurrentUserIDKey)

	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", uid, false).
		Update("is_read", true)
	if res.Error != nil {
		failBackend(c, res.Error)
		return
	}
	ok(c, gin.H{"updated": res.RowsAffected})
}
