package services

import (
	"context"
	"errors"
	"postbase/internal/logger"
	"postbase/internal/models"
	"time"

	"github.com/gin-contrib/sessions"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	SessionUserKey    = "user_id"
	SessionExpiresKey = "expires_at"
)

// Authorization 鉴权结果，User 为 nil 表示未通过
type Authorization struct {
	User *models.User
	Plan string
}

// Authorizer 校验请求方是否为 candidate 用户本人，并查出其订阅计划
type Authorizer struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuthorizer(db *gorm.DB) *Authorizer {
	return &Authorizer{db: db, now: time.Now}
}

// Authorize 只读取 session，不修改；任何失败都返回空的 Authorization
func (a *Authorizer) Authorize(ctx context.Context, sess sessions.Session, candidateID string) Authorization {
	if candidateID == "" || sess == nil {
		return Authorization{}
	}

	uid, ok := SessionUserID(sess, a.now())
	if !ok || uid != candidateID {
		return Authorization{}
	}

	var user models.User
	if err := a.db.WithContext(ctx).Where("id = ?", uid).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.L().Warn("authorize: load user failed", zap.String("user_id", uid), zap.Error(err))
		}
		return Authorization{}
	}

	plan := models.PlanFree
	var profile models.Profile
	err := a.db.WithContext(ctx).Select("id", "plan").Where("id = ?", uid).First(&profile).Error
	switch {
	case err == nil && profile.Plan != "":
		plan = profile.Plan
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		logger.L().Warn("authorize: load profile failed", zap.String("user_id", uid), zap.Error(err))
		return Authorization{}
	}

	return Authorization{User: &user, Plan: plan}
}

// SessionUserID 从 session 取出未过期的用户 ID
func SessionUserID(sess sessions.Session, now time.Time) (string, bool) {
	uid, ok := sess.Get(SessionUserKey).(string)
	if !ok || uid == "" {
		return "", false
	}
	expires, ok := sess.Get(SessionExpiresKey).(int64)
	if !ok || now.Unix() >= expires {
		return "", false
	}
	return uid, true
}

// StartSession 登录成功后写入 session
func StartSession(sess sessions.Session, userID string, maxAge time.Duration) error {
	sess.Set(SessionUserKey, userID)
	sess.Set(SessionExpiresKey, time.Now().Add(maxAge).Unix())
	return sess.Save()
}

// EndSession 清空 session
func EndSession(sess sessions.Session) error {
	sess.Clear()
	return sess.Save()
}
