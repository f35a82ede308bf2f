package models

import (
	"time"
)

const (
	PostTypePost = "post"
	PostTypePage = "page"

	PostStatusDraft   = "draft"
	PostStatusPublish = "publish"
	PostStatusPrivate = "private"
)

type Post struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       string     `gorm:"size:36;not null;index;uniqueIndex:idx_posts_user_slug" json:"user_id"`
	Author       Profile    `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Slug         string     `gorm:"size:255;not null;uniqueIndex:idx_posts_user_slug" json:"slug"`
	Type         string     `gorm:"size:20;not null;default:'post';index" json:"type"`
	Status       string     `gorm:"size:20;not null;default:'draft';index" json:"status"`
	Title        string     `gorm:"not null" json:"title"`
	Content      string     `gorm:"type:text" json:"content"`
	Excerpt      string     `gorm:"size:500" json:"excerpt"`
	ThumbnailURL string     `json:"thumbnail_url"`
	Views        int        `gorm:"default:0" json:"views"`
	PublishedAt  *time.Time `json:"published_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Metas []PostMeta `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	// 非数据库字段，由 SetMeta 从 Metas 展开
	Meta map[string]string `gorm:"-" json:"meta"`
}

// SetMeta 把 post_metas 关联行展开成 key -> value
func (p *Post) SetMeta() {
	p.Meta = make(map[string]string, len(p.Metas))
	for _, m := range p.Metas {
		p.Meta[m.MetaKey] = m.MetaValue
	}
}

// Path 返回文章公开页路径 /{username}/{slug}
func (p *Post) Path() string {
	if p.Author.Username == "" || p.Slug == "" {
		return ""
	}
	return "/" + p.Author.Username + "/" + p.Slug
}
