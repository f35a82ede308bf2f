package services

import (
	"context"
	"errors"
	"fmt"
	"postbase/internal/models"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrEmailTaken      = errors.New("email already registered")
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,29}$`)

// 与站点路由冲突的用户名
var reservedUsernames = map[string]bool{
	"api":    true,
	"auth":   true,
	"static": true,
	"admin":  true,
	"login":  true,
	"signup": true,
}

// NormalizeUsername 统一小写并校验格式，用户名会出现在公开页路径中
func NormalizeUsername(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !usernamePattern.MatchString(name) || reservedUsernames[name] {
		return "", ErrInvalidUsername
	}
	return name, nil
}

// NewAccount 注册参数
type NewAccount struct {
	Email        string
	PasswordHash string
	Username     string
	FullName     string
	AvatarURL    string
	GitHubID     string
}

// CreateAccount 在一个事务里创建 users 和 profiles 两行
func CreateAccount(ctx context.Context, db *gorm.DB, acc NewAccount) (*models.User, *models.Profile, error) {
	username, err := NormalizeUsername(acc.Username)
	if err != nil {
		return nil, nil, err
	}

	user := models.User{
		ID:       uuid.NewString(),
		Email:    strings.ToLower(strings.TrimSpace(acc.Email)),
		Password: acc.PasswordHash,
		GitHubID: acc.GitHubID,
	}
	profile := models.Profile{
		ID:        user.ID,
		Username:  username,
		FullName:  acc.FullName,
		AvatarURL: acc.AvatarURL,
		Plan:      models.PlanFree,
		Role:      models.RoleUser,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailTaken
		}
		if err := tx.Model(&models.Profile{}).Where("username = ?", username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrUsernameTaken
		}

		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := tx.Create(&profile).Error; err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &user, &profile, nil
}

// AvailableUsername 由 base 生成一个未被占用的用户名，用于第三方登录
func AvailableUsername(ctx context.Context, db *gorm.DB, base string) (string, error) {
	name := slug.Make(base)
	if len(name) > 24 {
		name = name[:24]
	}
	if _, err := NormalizeUsername(name); err != nil {
		name = "user"
	}

	candidate := name
	for i := 1; i <= 20; i++ {
		var n int64
		if err := db.WithContext(ctx).Model(&models.Profile{}).Where("username = ?", candidate).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 && !reservedUsernames[candidate] {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", name, i)
	}
	return name + "-" + uuid.NewString()[:4], nil
}
