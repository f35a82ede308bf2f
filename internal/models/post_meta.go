package models

import (
	"time"
)

type PostMeta struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_metas_post_key" json:"post_id"`
	MetaKey   string    `gorm:"size:255;not null;uniqueIndex:idx_post_metas_post_key" json:"meta_key"`
	MetaValue string    `gorm:"type:text" json:"meta_value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
