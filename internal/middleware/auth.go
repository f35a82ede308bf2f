package middleware

import (
	"net/http"
	"postbase/internal/models"
	"postbase/internal/services"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const CurrentUserIDKey = "user_id"
const CurrentProfileKey = "profile"

// AuthRequired 未登录时返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CurrentUserIDKey) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"data":  nil,
				"error": gin.H{"status": http.StatusUnauthorized, "message": http.StatusText(http.StatusUnauthorized)},
			})
			return
		}
		c.Next()
	}
}

// LoadUser retrieves the session user and its profile into the context.
// Expired sessions are cleared.
func LoadUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		uid, ok := services.SessionUserID(session, time.Now())
		if !ok {
			if session.Get(services.SessionUserKey) != nil {
				session.Clear()
				_ = session.Save()
			}
			c.Next()
			return
		}

		var profile models.Profile
		if err := db.WithContext(c.Request.Context()).Where("id = ?", uid).First(&profile).Error; err == nil {
			c.Set(CurrentUserIDKey, uid)
			c.Set(CurrentProfileKey, &profile)
		}
		c.Next()
	}
}

// CurrentProfile 返回已登录用户的 profile，未登录时为 nil
func CurrentProfile(c *gin.Context) *models.Profile {
	if p, exists := c.Get(CurrentProfileKey); exists {
		return p.(*models.Profile)
	}
	return nil
}

// AdminRequired 只允许 role=admin 的用户
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := CurrentProfile(c)
		if profile == nil || profile.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"data":  nil,
				"error": gin.H{"status": http.StatusForbidden, "message": http.StatusText(http.StatusForbidden)},
			})
			return
		}
		c.Next()
	}
}
