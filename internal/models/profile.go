package models

import (
	"time"
)

const (
	PlanFree = "free"
	PlanPro  = "pro"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Profile struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"` // 与 User.ID 相同
	Username  string    `gorm:"uniqueIndex;size:30;not null" json:"username"`
	FullName  string    `gorm:"size:100" json:"full_name"`
	Bio       string    `gorm:"size:160" json:"bio"`
	AvatarURL string    `json:"avatar_url"`
	Plan      string    `gorm:"size:20;default:'free';not null" json:"plan"` // free, pro
	Role      string    `gorm:"size:20;default:'user';not null" json:"role"` // user, admin
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
