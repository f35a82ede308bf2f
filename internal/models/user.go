package models

import (
	"time"
)

// User 登录身份，公开资料在 Profile
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `json:"-"`                        // bcrypt hash, GitHub 用户可以为空
	GitHubID  string    `gorm:"column:github_id;index" json:"github_id"` // GitHub OAuth ID
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 找回密码的验证码
	ResetCode          string     `gorm:"size:12" json:"-"`
	ResetCodeExpiresAt *time.Time `json:"-"`
	ResetAttempts      int        `gorm:"default:0;not null" json:"-"` // 当前验证码输错的次数
}
