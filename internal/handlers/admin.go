package handlers

import (
	"fmt"
	"net/http"
	"postbase/internal/logger"
	"postbase/internal/models"
	"postbase/internal/revalidate"
	"postbase/internal/services"
	"postbase/internal/utils"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db       *gorm.DB
	notifier *revalidate.Notifier
	now      func() time.Time
}

func NewAdminHandler(db *gorm.DB, notifier *revalidate.Notifier) *AdminHandler {
	return &AdminHandler{db: db, notifier: notifier, now: time.Now}
}

// ListUsers GET /api/v1/admin/users?page=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page := utils.StringToInt(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	const perPage = 50

	db := h.db.WithContext(c.Request.Context())
	var total int64
	if err := db.Model(&models.Profile{}).Count(&total).Error; err != nil {
		failBackend(c, err)
		return
	}

	var profiles []models.Profile
	err := db.Order("created_at DESC").Limit(perPage).Offset((page - 1) * perPage).Find(&profiles).Error
	if err != nil {
		failBackend(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profiles, "count": total, "error": nil})
}

type planForm struct {
	Plan string `json:"plan" binding:"required,oneof=free pro"`
}

// SetPlan PUT /api/v1/admin/users/:id/plan
func (h *AdminHandler) SetPlan(c *gin.Context) {
	var form planForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fieldError(c, http.StatusBadRequest, "invalid_plan", "plan")
		return
	}

	uid := c.Param("id")
	res := h.db.WithContext(c.Request.Context()).Model(&models.Profile{}).
		Where("id = ?", uid).
		Updates(map[string]interface{}{"plan": form.Plan, "updated_at": h.now()})
	if res.Error != nil {
		failBackend(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, http.StatusNotFound, NewApiError(http.StatusNotFound))
		return
	}

	msg := fmt.Sprintf("Your plan is now %s.", form.Plan)
	if err := services.Notify(c.Request.Context(), h.db, uid, models.NotificationTypeSystem, msg); err != nil {
		logger.L().Warn("plan notification failed", zap.String("user_id", uid), zap.Error(err))
	}
	logger.L().Info("plan changed", zap.String("user_id", uid), zap.String("plan", form.Plan))

	ok(c, gin.H{"id": uid, "plan": form.Plan})
}

// HidePost POST /api/v1/admin/posts/:id/hide，把文章改为 private 并刷新公开页
func (h *AdminHandler) HidePost(c *gin.Context) {
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		failBackend(c, invalidInput("bigint", c.Param("id")))
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var post models.Post
	if err := db.Preload("Author").Where("id = ?", id).First(&post).Error; err != nil {
		failBackend(c, err)
		return
	}

	err := db.Model(&models.Post{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.PostStatusPrivate, "updated_at": h.now()}).Error
	if err != nil {
		failBackend(c, err)
		return
	}

	msg := fmt.Sprintf("Your post %q was hidden by a moderator.", post.Title)
	if err := services.Notify(c.Request.Context(), h.db, post.UserID, models.NotificationTypeSystem, msg); err != nil {
		logger.L().Warn("moderation notification failed", zap.Uint("post_id", id), zap.Error(err))
	}

	paths := []string{}
	if p := post.Path(); p != "" {
		paths = append(paths, p, "/"+post.Author.Username)
	}
	c.JSON(http.StatusOK, gin.H{
		"data":        nil,
		"error":       nil,
		"revalidated": h.notifier.Revalidate(c.Request.Context(), paths),
		"now":         h.now().UnixMilli(),
	})
}
