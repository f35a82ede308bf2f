package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"postbase/internal/logger"
	"postbase/internal/middleware"
	"postbase/internal/models"
	"postbase/internal/services"
	"postbase/internal/utils"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// FieldError 表单错误，code 是前端的翻译 key
type FieldError struct {
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func fieldError(c *gin.Context, status int, code, field string) {
	fail(c, status, &FieldError{Code: code, Field: field})
}

type AuthHandler struct {
	db        *gorm.DB
	mail      *services.MailService
	maxAge    time.Duration
	siteURL   string
	github    *oauth2.Config
	githubAPI string
	now       func() time.Time
}

func NewAuthHandler(db *gorm.DB, mail *services.MailService, maxAge time.Duration, siteURL string, github *oauth2.Config) *AuthHandler {
	return &AuthHandler{
		db:        db,
		mail:      mail,
		maxAge:    maxAge,
		siteURL:   strings.TrimRight(siteURL, "/"),
		github:    github,
		githubAPI: "https://api.github.com",
		now:       time.Now,
	}
}

type signUpForm struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Username string `json:"username" binding:"required,min=2,max=30"`
}

// SignUp POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var form signUpForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fieldError(c, http.StatusBadRequest, "invalid_form", "")
		return
	}

	hash, err := utils.HashPassword(strings.TrimSpace(form.Password))
	if err != nil {
		logger.L().Error("hash password failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, NewApiError(http.StatusInternalServerError))
		return
	}

	user, profile, err := services.CreateAccount(c.Request.Context(), h.db, services.NewAccount{
		Email:        form.Email,
		PasswordHash: hash,
		Username:     form.Username,
	})
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		fieldError(c, http.StatusConflict, "email_already_registered", "email")
		return
	case errors.Is(err, services.ErrUsernameTaken):
		fieldError(c, http.StatusConflict, "username_already_taken", "username")
		return
	case errors.Is(err, services.ErrInvalidUsername):
		fieldError(c, http.StatusBadRequest, "invalid_username", "username")
		return
	case err != nil:
		failBackend(c, err)
		return
	}

	if err := services.StartSession(sessions.Default(c), user.ID, h.maxAge); err != nil {
		logger.L().Error("save session failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, NewApiError(http.StatusInternalServerError))
		return
	}

	logger.L().Info("user signed up", zap.String("user_id", user.ID), zap.String("username", profile.Username))
	ok(c, profile)
}

type signInForm struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignIn POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var form signInForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fieldError(c, http.StatusBadRequest, "invalid_form", "")
		return
	}

	var user models.User
	email := strings.ToLower(strings.TrimSpace(form.Email))
	if err := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		fieldError(c, http.StatusUnauthorized, "invalid_login_credentials", "")
		return
	}
	if !utils.CheckPasswordHash(strings.TrimSpace(form.Password), user.Password) {
		fieldError(c, http.StatusUnauthorized, "invalid_login_credentials", "")
		return
	}

	if err := services.StartSession(sessions.Default(c), user.ID, h.maxAge); err != nil {
		logger.L().Error("save session failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, NewApiError(http.StatusInternalServerError))
		return
	}

	var profile models.Profile
	h.db.WithContext(c.Request.Context()).Where("id = ?", user.ID).First(&profile)
	ok(c, profile)
}

// SignOut POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := services.EndSession(sessions.Default(c)); err != nil {
		logger.L().Warn("clear session failed", zap.Error(err))
	}
	ok(c, nil)
}

type changePasswordForm struct {
	OldPassword        string `json:"oldPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

func validPasswordLength(p string) bool {
	// bcrypt 只使用前 72 字节
	return len(p) >= 6 && len(p) <= 72
}

// ChangePassword POST /api/v1/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var form changePasswordForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fieldError(c, http.StatusBadRequest, "invalid_form", "")
		return
	}
	oldPassword := strings.TrimSpace(form.OldPassword)
	newPassword := strings.TrimSpace(form.NewPassword)
	confirm := strings.TrimSpace(form.ConfirmNewPassword)

	switch {
	case !validPasswordLength(oldPassword):
		fieldError(c, http.StatusBadRequest, "invalid_password_length", "oldPassword")
		return
	case !validPasswordLength(newPassword):
		fieldError(c, http.StatusBadRequest, "invalid_password_length", "newPassword")
		return
	case newPassword != confirm:
		fieldError(c, http.StatusBadRequest, "invalid_confirm_password", "confirmNewPassword")
		return
	}

	uid := c.GetString(middleware.CurrentUserIDKey)
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).Where("id = ?", uid).First(&user).Error; err != nil {
		fail(c, http.StatusUnauthorized, NewApiError(http.StatusUnauthorized))
		return
	}

	if !utils.CheckPasswordHash(oldPassword, user.Password) {
		fieldError(c, http.StatusBadRequest, "invalid_old_password", "oldPassword")
		return
	}
	if newPassword == oldPassword {
		fieldError(c, http.StatusUnprocessableEntity, "new_password_should_be_different_from_the_old_password", "newPassword")
		return
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		logger.L().Error("hash password failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, NewApiError(http.StatusInternalServerError))
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&user).Update("password", hash).Error; err != nil {
		failBackend(c, err)
		return
	}

	now := h.now()
	if err := services.Notify(c.Request.Context(), h.db, uid, models.NotificationTypeSecurity, "Your password was changed."); err != nil {
		logger.L().Warn("security notification failed", zap.String("user_id", uid), zap.Error(err))
	}
	username := ""
	if profile := middleware.CurrentProfile(c); profile != nil {
		username = profile.Username
	}
	h.mail.SendPasswordChanged(user.Email, username, now.Format(time.RFC1123), h.siteURL+"/auth/forgot-password")

	ok(c, gin.H{"message": "your_password_has_been_successfully_changed"})
}

const (
	resetCodeTTL = 15 * time.Minute
	// 输错这么多次后验证码作废，需要重新申请
	maxResetAttempts = 5
)

type forgotPasswordForm struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword POST /api/v1/auth/forgot-password
// 无论邮箱是否存在都返回成功
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var form forgotPasswordForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fieldError(c, http.StatusBadRequest, "invalid_email", "email")
		return
	}

	sent := gin.H{"message": "check_your_email_for_the_code"}

	var user models.User
	email := strings.ToLower(strings.TrimSpace(form.Email))
	if err := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		ok(c, sent)
		return
	}

	code, err := utils.RandomCode(6)
	if err != nil {
		logger.L().Error("generate reset code failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, NewApiError(http.StatusInternalServerError))
		return
	}
	expires := h.now().Add(resetCodeTTL)
	err = h.db.WithContext(c.Request.Context()).Model(&user).Updates(map[string]interface{}{
		"reset_code":            code,
		"reset_code_expires_at": expires,
		"reset_attempts":        0,
	}).Error
	if err != nil {
		failBackend(c, err)
		return
	}

	h.mail.SendPasswordReset(user.Email, code, resetCodeTTL)
	ok(c, sent)
}

type resetPasswordForm struct {
	Email              string `json:"email" binding:"required"`
	Code               string `json:"code" binding:"required"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

// ResetPassword POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var form resetPasswordForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fieldError(c, http.StatusBadRequest, "invalid_form", "")
		return
	}
	newPassword := strings.TrimSpace(form.NewPassword)
	switch {
	case !validPasswordLength(newPassword):
		fieldError(c, http.StatusBadRequest, "invalid_password_length", "newPassword")
		return
	case newPassword != strings.TrimSpace(form.ConfirmNewPassword):
		fieldError(c, http.StatusBadRequest, "invalid_confirm_password", "confirmNewPassword")
		return
	}

	var user models.User
	email := strings.ToLower(strings.TrimSpace(form.Email))
	err := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if err != nil || user.ResetCode == "" || user.ResetCodeExpiresAt == nil || h.now().After(*user.ResetCodeExpiresAt) {
		fieldError(c, http.StatusBadRequest, "invalid_or_expired_code", "code")
		return
	}
	if subtle.ConstantTimeCompare([]byte(user.ResetCode), []byte(strings.TrimSpace(form.Code))) != 1 {
		h.resetCodeMismatch(c, &user)
		fieldError(c, http.StatusBadRequest, "invalid_or_expired_code", "code")
		return
	}
	if utils.CheckPasswordHash(newPassword, user.Password) {
		fieldError(c, http.StatusUnprocessableEntity, "new_password_should_be_different_from_the_old_password", "newPassword")
		return
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		logger.L().Error("hash password failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, NewApiError(http.StatusInternalServerError))
		return
	}
	err = h.db.WithContext(c.Request.Context()).Model(&user).Updates(map[string]interface{}{
		"password":              hash,
		"reset_code":            "",
		"reset_code_expires_at": nil,
		"reset_attempts":        0,
	}).Error
	if err != nil {
		failBackend(c, err)
		return
	}

	if err := services.Notify(c.Request.Context(), h.db, user.ID, models.NotificationTypeSecurity, "Your password was reset."); err != nil {
		logger.L().Warn("security notification failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	ok(c, gin.H{"message": "your_password_has_been_successfully_changed"})
}

// resetCodeMismatch 记一次输错，达到上限后清掉验证码
func (h *AuthHandler) resetCodeMismatch(c *gin.Context, user *models.User) {
	updates := map[string]interface{}{"reset_attempts": gorm.Expr("reset_attempts + 1")}
	if user.ResetAttempts+1 >= maxResetAttempts {
		updates["reset_code"] = ""
		updates["reset_code_expires_at"] = nil
		logger.L().Warn("reset code locked after too many attempts", zap.String("user_id", user.ID))
	}
	if err := h.db.WithContext(c.Request.Context()).Model(user).Updates(updates).Error; err != nil {
		logger.L().Warn("record reset attempt failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}
