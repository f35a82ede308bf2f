package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"postbase/internal/logger"
	"postbase/internal/models"
	"postbase/internal/revalidate"
	"postbase/internal/services"
	"postbase/internal/utils"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostQuery GET /api/v1/post 的查询参数
type PostQuery struct {
	ID         string `form:"id"`
	UserID     string `form:"userId"`
	Slug       string `form:"slug"`
	PostType   string `form:"postType"`
	PostStatus string `form:"postStatus"`
}

// Match 单行查询的等值条件
type Match map[string]string

// BuildMatch 只为非空参数生成条件；postType 缺省为 post
func BuildMatch(q PostQuery) Match {
	match := Match{}
	if q.ID != "" {
		match["id"] = q.ID
	}
	if q.UserID != "" {
		match["user_id"] = q.UserID
	}
	if q.PostType != "" {
		match["type"] = q.PostType
	} else {
		match["type"] = models.PostTypePost
	}
	if q.PostStatus != "" {
		match["status"] = q.PostStatus
	}
	if q.Slug != "" {
		match["slug"] = q.Slug
	}
	return match
}

// conditions 把 Match 转成 gorm 条件，id 必须是数字
func (m Match) conditions() (map[string]interface{}, error) {
	conds := make(map[string]interface{}, len(m))
	for k, v := range m {
		if k == "id" {
			id, ok := utils.ParseID(v)
			if !ok {
				return nil, invalidInput("bigint", v)
			}
			conds[k] = id
			continue
		}
		conds[k] = v
	}
	return conds, nil
}

type mutationOptions struct {
	RevalidatePaths []string `json:"revalidatePaths"`
}

// mutationRequest 写操作的请求体 {formData, options}
type mutationRequest struct {
	FormData map[string]interface{} `json:"formData"`
	Options  mutationOptions        `json:"options"`
}

// ownerID 取出 formData.user_id，只作为待验证的候选
func (r *mutationRequest) ownerID() string {
	uid, _ := r.FormData["user_id"].(string)
	return uid
}

type PostHandler struct {
	db            *gorm.DB
	authz         *services.Authorizer
	notifier      *revalidate.Notifier
	views         *services.ViewCounter
	freePlanLimit int
	now           func() time.Time
}

func NewPostHandler(db *gorm.DB, authz *services.Authorizer, notifier *revalidate.Notifier, views *services.ViewCounter, freePlanLimit int) *PostHandler {
	return &PostHandler{
		db:            db,
		authz:         authz,
		notifier:      notifier,
		views:         views,
		freePlanLimit: freePlanLimit,
		now:           time.Now,
	}
}

func (h *PostHandler) bindMutation(c *gin.Context) (*mutationRequest, bool) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, &BackendError{Code: CodeInvalidJSON, Message: "Empty or invalid json", Details: err.Error()})
		return nil, false
	}
	if req.FormData == nil {
		req.FormData = map[string]interface{}{}
	}
	return &req, true
}

// mutated 写操作成功后的统一响应
func (h *PostHandler) mutated(c *gin.Context, data interface{}, paths []string) {
	revalidated := h.notifier.Revalidate(c.Request.Context(), paths)
	c.JSON(http.StatusOK, gin.H{
		"data":        data,
		"error":       nil,
		"revalidated": revalidated,
		"now":         h.now().UnixMilli(),
	})
}

// visibleTo 非作者只能看到已发布的文章
func visibleTo(tx *gorm.DB, viewerID string) *gorm.DB {
	if viewerID == "" {
		return tx.Where("status = ?", models.PostStatusPublish)
	}
	return tx.Where("(status = ? OR user_id = ?)", models.PostStatusPublish, viewerID)
}

func (h *PostHandler) viewer(c *gin.Context) string {
	uid, _ := services.SessionUserID(sessions.Default(c), h.now())
	return uid
}

// findOne 相当于 .single()：恰好一行才算成功
func (h *PostHandler) findOne(tx *gorm.DB) (*models.Post, error) {
	var posts []models.Post
	if err := tx.Preload("Author").Preload("Metas").Limit(2).Find(&posts).Error; err != nil {
		return nil, err
	}
	if len(posts) != 1 {
		return nil, noRows(len(posts))
	}
	post := posts[0]
	post.SetMeta()
	return &post, nil
}

// Get GET /api/v1/post
func (h *PostHandler) Get(c *gin.Context) {
	var q PostQuery
	_ = c.ShouldBindQuery(&q)

	conds, err := BuildMatch(q).conditions()
	if err != nil {
		failBackend(c, err)
		return
	}

	tx := visibleTo(h.db.WithContext(c.Request.Context()).Model(&models.Post{}), h.viewer(c)).Where(conds)
	post, err := h.findOne(tx)
	if err != nil {
		failBackend(c, err)
		return
	}

	ok(c, post)
}

// Update POST /api/v1/post?id=
func (h *PostHandler) Update(c *gin.Context) {
	req, valid := h.bindMutation(c)
	if !valid {
		return
	}

	auth := h.authz.Authorize(c.Request.Context(), sessions.Default(c), req.ownerID())
	if auth.User == nil {
		fail(c, http.StatusUnauthorized, NewApiError(http.StatusUnauthorized))
		return
	}
	uid := auth.User.ID

	id, valid := utils.ParseID(c.Query("id"))
	if !valid {
		failBackend(c, invalidInput("bigint", c.Query("id")))
		return
	}

	values, err := postColumns(req.FormData)
	if err != nil {
		failBackend(c, err)
		return
	}
	if s, exists := values["slug"]; exists {
		values["slug"] = slug.Make(s.(string))
		if values["slug"] == "" {
			failBackend(c, notNull("slug"))
			return
		}
	}
	if values["status"] == models.PostStatusPublish {
		if _, exists := values["published_at"]; !exists {
			values["published_at"] = gorm.Expr("COALESCE(published_at, ?)", h.now())
		}
	}
	values["updated_at"] = h.now()

	db := h.db.WithContext(c.Request.Context())
	res := db.Model(&models.Post{}).Where("id = ? AND user_id = ?", id, uid).Updates(values)
	if res.Error != nil {
		failBackend(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		failBackend(c, noRows(0))
		return
	}

	post, err := h.findOne(db.Model(&models.Post{}).Where("id = ? AND user_id = ?", id, uid))
	if err != nil {
		failBackend(c, err)
		return
	}

	h.mutated(c, post, req.Options.RevalidatePaths)
}

// Create PUT /api/v1/post?userId=
func (h *PostHandler) Create(c *gin.Context) {
	req, valid := h.bindMutation(c)
	if !valid {
		return
	}

	auth := h.authz.Authorize(c.Request.Context(), sessions.Default(c), c.Query("userId"))
	if auth.User == nil {
		fail(c, http.StatusUnauthorized, NewApiError(http.StatusUnauthorized))
		return
	}
	uid := auth.User.ID

	var (
		post     models.Post
		count    int64
		exceeded bool
	)
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		// 锁住作者的 profile 行，同一用户的并发创建在这里排队，避免超额
		var profile models.Profile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", uid).Take(&profile).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Model(&models.Post{}).Where("user_id = ?", uid).Count(&count).Error; err != nil {
			return err
		}
		// 超额时不看 formData，直接 402
		if services.ExceedsFreeQuota(auth.Plan, count, h.freePlanLimit) {
			exceeded = true
			return nil
		}

		p, err := h.newPost(uid, req.FormData)
		if err != nil {
			return err
		}
		post = *p
		return tx.Omit(clause.Associations).Create(&post).Error
	})
	if err != nil {
		failBackend(c, err)
		return
	}
	if exceeded {
		fail(c, http.StatusPaymentRequired, NewApiError(http.StatusPaymentRequired))
		return
	}

	created, err := h.findOne(h.db.WithContext(c.Request.Context()).Model(&models.Post{}).Where("id = ?", post.ID))
	if err != nil {
		failBackend(c, err)
		return
	}

	if services.ReachedFreeQuota(auth.Plan, count+1, h.freePlanLimit) {
		msg := fmt.Sprintf("You have used all %d posts of the free plan. Upgrade to keep writing.", h.freePlanLimit)
		if err := services.Notify(c.Request.Context(), h.db, uid, models.NotificationTypeQuota, msg); err != nil {
			logger.L().Warn("quota notification failed", zap.String("user_id", uid), zap.Error(err))
		}
	}

	h.mutated(c, created, req.Options.RevalidatePaths)
}

// newPost 由 formData 构造待插入的文章，补齐 slug、摘要和发布时间
func (h *PostHandler) newPost(uid string, formData map[string]interface{}) (*models.Post, error) {
	values, err := postColumns(formData)
	if err != nil {
		return nil, err
	}

	post := models.Post{
		UserID: uid,
		Type:   models.PostTypePost,
		Status: models.PostStatusDraft,
	}
	applyColumns(&post, values)
	if post.Title == "" {
		return nil, notNull("title")
	}
	if post.Slug = slug.Make(post.Slug); post.Slug == "" {
		post.Slug = slug.Make(post.Title)
	}
	if post.Slug == "" {
		post.Slug = fmt.Sprintf("post-%d", h.now().UnixMilli())
	}
	if post.Excerpt == "" {
		post.Excerpt = utils.MarkdownExcerpt(post.Content, 160)
	}
	if post.Status == models.PostStatusPublish && post.PublishedAt == nil {
		now := h.now()
		post.PublishedAt = &now
	}
	return &post, nil
}

// Delete DELETE /api/v1/post?id=
func (h *PostHandler) Delete(c *gin.Context) {
	req, valid := h.bindMutation(c)
	if !valid {
		return
	}

	auth := h.authz.Authorize(c.Request.Context(), sessions.Default(c), req.ownerID())
	if auth.User == nil {
		fail(c, http.StatusUnauthorized, NewApiError(http.StatusUnauthorized))
		return
	}
	uid := auth.User.ID

	id, valid := utils.ParseID(c.Query("id"))
	if !valid {
		failBackend(c, invalidInput("bigint", c.Query("id")))
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, uid).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return noRows(0)
		}
		return tx.Where("post_id = ?", id).Delete(&models.PostMeta{}).Error
	})
	if err != nil {
		failBackend(c, err)
		return
	}

	h.mutated(c, nil, req.Options.RevalidatePaths)
}

// ListQuery GET /api/v1/post/list 的参数
type ListQuery struct {
	UserID     string `form:"userId"`
	PostType   string `form:"postType"`
	PostStatus string `form:"postStatus"`
	Q          string `form:"q"`
	Page       int    `form:"page"`
	PerPage    int    `form:"perPage"`
}

// List GET /api/v1/post/list，分页，最新的在前
func (h *PostHandler) List(c *gin.Context) {
	var q ListQuery
	_ = c.ShouldBindQuery(&q)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 10
	}
	if q.PerPage > 100 {
		q.PerPage = 100
	}
	if q.PostType == "" {
		q.PostType = models.PostTypePost
	}

	tx := visibleTo(h.db.WithContext(c.Request.Context()).Model(&models.Post{}), h.viewer(c)).
		Where("type = ?", q.PostType)
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.PostStatus != "" {
		tx = tx.Where("status = ?", q.PostStatus)
	}
	if q.Q != "" {
		pattern := "%" + strings.ToLower(q.Q) + "%"
		tx = tx.Where("(LOWER(title) LIKE ? OR LOWER(content) LIKE ?)", pattern, pattern)
	}

	var total int64
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		failBackend(c, err)
		return
	}

	var posts []models.Post
	err := tx.Preload("Author").Preload("Metas").
		Order("created_at DESC, id DESC").
		Limit(q.PerPage).
		Offset((q.Page - 1) * q.PerPage).
		Find(&posts).Error
	if err != nil {
		failBackend(c, err)
		return
	}
	for i := range posts {
		posts[i].SetMeta()
	}

	c.JSON(http.StatusOK, gin.H{"data": posts, "count": total, "error": nil})
}

// PostCount 按状态统计
type PostCount struct {
	All     int64 `json:"all"`
	Publish int64 `json:"publish"`
	Draft   int64 `json:"draft"`
	Private int64 `json:"private"`
}

// Count GET /api/v1/post/count?userId=，只能查自己的
func (h *PostHandler) Count(c *gin.Context) {
	uid := c.Query("userId")
	if uid == "" || uid != h.viewer(c) {
		fail(c, http.StatusUnauthorized, NewApiError(http.StatusUnauthorized))
		return
	}

	out, err := countPosts(h.db.WithContext(c.Request.Context()), uid, c.DefaultQuery("postType", models.PostTypePost))
	if err != nil {
		failBackend(c, err)
		return
	}
	ok(c, out)
}

func countPosts(db *gorm.DB, uid, postType string) (PostCount, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := db.Model(&models.Post{}).
		Select("status, COUNT(*) as count").
		Where("user_id = ? AND type = ?", uid, postType).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return PostCount{}, err
	}

	var out PostCount
	for _, r := range rows {
		out.All += r.Count
		switch r.Status {
		case models.PostStatusPublish:
			out.Publish = r.Count
		case models.PostStatusDraft:
			out.Draft = r.Count
		case models.PostStatusPrivate:
			out.Private = r.Count
		}
	}
	return out, nil
}

// View POST /api/v1/post/view?id=，浏览量异步写回
func (h *PostHandler) View(c *gin.Context) {
	id, valid := utils.ParseID(c.Query("id"))
	if !valid {
		failBackend(c, invalidInput("bigint", c.Query("id")))
		return
	}
	h.views.Record(id)
	ok(c, nil)
}
