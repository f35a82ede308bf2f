package handlers

import (
	"net/http"
	"postbase/internal/middleware"
	"postbase/internal/models"
	"postbase/internal/revalidate"
	"postbase/internal/services"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserHandler struct {
	db            *gorm.DB
	notifier      *revalidate.Notifier
	freePlanLimit int
	now           func() time.Time
}

func NewUserHandler(db *gorm.DB, notifier *revalidate.Notifier, freePlanLimit int) *UserHandler {
	return &UserHandler{
		db:            db,
		notifier:      notifier,
		freePlanLimit: freePlanLimit,
		now:           time.Now,
	}
}

// Profile GET /api/v1/profile
func (h *UserHandler) Profile(c *gin.Context) {
	ok(c, middleware.CurrentProfile(c))
}

type profileForm struct {
	Username  string `json:"username" binding:"required,min=2,max=30"`
	FullName  string `json:"full_name" binding:"max=100"`
	Bio       string `json:"bio" binding:"max=160"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,url"`
}

// UpdateProfile POST /api/v1/profile
// 改用户名后旧地址和新地址的公开页都要刷新
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var form profileForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fieldError(c, http.StatusBadRequest, "invalid_form", "")
		return
	}
	username, err := services.NormalizeUsername(form.Username)
	if err != nil {
		fieldError(c, http.StatusBadRequest, "invalid_username", "username")
		return
	}

	current := middleware.CurrentProfile(c)
	db := h.db.WithContext(c.Request.Context())

	if username != current.Username {
		var n int64
		if err := db.Model(&models.Profile{}).Where("username = ? AND id <> ?", username, current.ID).Count(&n).Error; err != nil {
			failBackend(c, err)
			return
		}
		if n > 0 {
			fieldError(c, http.StatusConflict, "username_already_taken", "username")
			return
		}
	}

	err = db.Model(&models.Profile{}).Where("id = ?", current.ID).Updates(map[string]interface{}{
		"username":   username,
		"full_name":  strings.TrimSpace(form.FullName),
		"bio":        strings.TrimSpace(form.Bio),
		"avatar_url": strings.TrimSpace(form.AvatarURL),
		"updated_at": h.now(),
	}).Error
	if err != nil {
		failBackend(c, err)
		return
	}

	var profile models.Profile
	if err := db.Where("id = ?", current.ID).First(&profile).Error; err != nil {
		failBackend(c, err)
		return
	}

	paths, err := h.profilePaths(db, current.ID, current.Username, profile.Username)
	if err != nil {
		failBackend(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        profile,
		"error":       nil,
		"revalidated": h.notifier.Revalidate(c.Request.Context(), paths),
		"now":         h.now().UnixMilli(),
	})
}

// profilePaths 作者主页和所有已发布文章的地址，新旧用户名各一份
func (h *UserHandler) profilePaths(db *gorm.DB, uid string, usernames ...string) ([]string, error) {
	var slugs []string
	err := db.Model(&models.Post{}).
		Where("user_id = ? AND status = ?", uid, models.PostStatusPublish).
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	paths := make([]string, 0, len(usernames)*(len(slugs)+1))
	for _, name := range usernames {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		paths = append(paths, "/"+name)
		for _, s := range slugs {
			paths = append(paths, "/"+name+"/"+s)
		}
	}
	return paths, nil
}

// Dashboard GET /api/v1/dashboard
func (h *UserHandler) Dashboard(c *gin.Context) {
	profile := middleware.CurrentProfile(c)
	ctx := c.Request.Context()

	posts, err := countPosts(h.db.WithContext(ctx), profile.ID, models.PostTypePost)
	if err != nil {
		failBackend(c, err)
		return
	}
	pages, err := countPosts(h.db.WithContext(ctx), profile.ID, models.PostTypePage)
	if err != nil {
		failBackend(c, err)
		return
	}

	var remaining interface{}
	if profile.Plan == models.PlanFree || profile.Plan == "" {
		left := int64(h.freePlanLimit) - posts.All - pages.All
		if left < 0 {
			left = 0
		}
		remaining = left
	}

	ok(c, gin.H{
		"profile":         profile,
		"plan":            profile.Plan,
		"posts":           posts,
		"pages":           pages,
		"remaining_posts": remaining,
		"unread":          services.UnreadCount(ctx, h.db, profile.ID),
	})
}
