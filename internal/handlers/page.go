package handlers

import (
	"errors"
	"net/http"
	"postbase/internal/logger"
	"postbase/internal/models"
	"postbase/internal/revalidate"
	"postbase/internal/services"
	"postbase/internal/utils"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PageHandler 公开页面 /:username 和 /:username/:slug
// 渲染数据按路径缓存，文章变更时由 revalidate 清除
type PageHandler struct {
	db      *gorm.DB
	cache   *revalidate.PageCache
	views   *services.ViewCounter
	siteURL string
}

func NewPageHandler(db *gorm.DB, cache *revalidate.PageCache, views *services.ViewCounter, siteURL string) *PageHandler {
	return &PageHandler{
		db:      db,
		cache:   cache,
		views:   views,
		siteURL: strings.TrimRight(siteURL, "/"),
	}
}

// render 每次渲染都复制缓存的数据，Render 会往里写当前用户
func (h *PageHandler) render(c *gin.Context, name string, cached gin.H) {
	obj := make(gin.H, len(cached)+2)
	for k, v := range cached {
		obj[k] = v
	}
	Render(c, http.StatusOK, name, obj)
}

func (h *PageHandler) author(c *gin.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	err := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Author 作者主页，列出已发布的文章
func (h *PageHandler) Author(c *gin.Context) {
	key := c.Request.URL.Path
	if data, ok := h.cache.Get(key).(gin.H); ok {
		h.render(c, "user/posts.html", data)
		return
	}

	profile, err := h.author(c, c.Param("username"))
	if err != nil {
		h.notFound(c, err)
		return
	}

	var posts []models.Post
	err = h.db.WithContext(c.Request.Context()).
		Where("user_id = ? AND type = ? AND status = ?", profile.ID, models.PostTypePost, models.PostStatusPublish).
		Order("published_at DESC, id DESC").
		Limit(50).
		Find(&posts).Error
	if err != nil {
		logger.L().Error("list author posts failed", zap.String("username", profile.Username), zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Something went wrong")
		return
	}
	for i := range posts {
		posts[i].Author = *profile
	}

	title := profile.FullName
	if title == "" {
		title = "@" + profile.Username
	}
	data := gin.H{
		"Title":       title,
		"Description": profile.Bio,
		"Canonical":   h.siteURL + key,
		"Author":      profile,
		"Posts":       posts,
	}
	h.cache.Set(key, data)
	h.render(c, "user/posts.html", data)
}

// Post 文章详情页
func (h *PageHandler) Post(c *gin.Context) {
	key := c.Request.URL.Path
	if data, ok := h.cache.Get(key).(gin.H); ok {
		if post, ok := data["Post"].(*models.Post); ok {
			h.views.Record(post.ID)
		}
		h.render(c, "post/detail.html", data)
		return
	}

	profile, err := h.author(c, c.Param("username"))
	if err != nil {
		h.notFound(c, err)
		return
	}

	var post models.Post
	err = h.db.WithContext(c.Request.Context()).
		Preload("Metas").
		Where("user_id = ? AND slug = ? AND status = ?", profile.ID, c.Param("slug"), models.PostStatusPublish).
		First(&post).Error
	if err != nil {
		h.notFound(c, err)
		return
	}
	post.Author = *profile
	post.SetMeta()

	body := utils.RenderMarkdown(post.Content)
	description := post.Excerpt
	if description == "" {
		description = utils.PlainText(string(body), 160)
	}
	data := gin.H{
		"Title":       post.Title,
		"Description": description,
		"Canonical":   h.siteURL + key,
		"Post":        &post,
		"Body":        body,
	}
	h.cache.Set(key, data)
	h.views.Record(post.ID)
	h.render(c, "post/detail.html", data)
}

func (h *PageHandler) notFound(c *gin.Context, err error) {
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.L().Error("load page failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Something went wrong")
		return
	}
	RenderError(c, http.StatusNotFound, "Page not found")
}
