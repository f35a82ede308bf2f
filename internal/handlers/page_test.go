package handlers

import (
	"net/http"
	"testing"

	"postbase/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostPage(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", models.PlanFree)
	env.seedPost(t, models.Post{
		ID:      1,
		UserID:  "u1",
		Slug:    "hello",
		Title:   "Hello",
		Content: "# Heading\n\nbody text\n\n<script>alert(1)</script>",
		Status:  models.PostStatusPublish,
	})
	env.seedPost(t, models.Post{ID: 2, UserID: "u1", Slug: "secret", Title: "Secret"})

	w := env.do(t, http.MethodGet, "/u1/hello", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>Hello</h1>")
	assert.Contains(t, w.Body.String(), "body text")
	assert.NotContains(t, w.Body.String(), "<script>alert(1)</script>")
	assert.Equal(t, 1, env.views.Pending(1))

	w = env.do(t, http.MethodGet, "/u1/secret", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/nobody/hello", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostPage_CachedUntilRevalidated(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", models.PlanFree)
	env.seedPost(t, models.Post{ID: 1, UserID: "u1", Slug: "hello", Title: "First", Status: models.PostStatusPublish})

	w := env.do(t, http.MethodGet, "/u1/hello", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "First")

	// 绕过 API 直接改库，缓存不会变
	require.NoError(t, env.db.Model(&models.Post{}).Where("id = ?", 1).Update("title", "Sneaky").Error)
	w = env.do(t, http.MethodGet, "/u1/hello", nil, nil)
	assert.Contains(t, w.Body.String(), "First")
	assert.Equal(t, 2, env.views.Pending(1))

	body := mutation(map[string]interface{}{"user_id": "u1", "title": "Second"}, "/u1/hello")
	w = env.do(t, http.MethodPost, "/api/v1/post?id=1", body, env.login(t, "u1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/u1/hello", nil, nil)
	assert.Contains(t, w.Body.String(), "Second")
	assert.NotContains(t, w.Body.String(), "First")
}

func TestAuthorPage(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", models.PlanPro)
	env.seedPost(t, models.Post{UserID: "u1", Slug: "public-one", Title: "Public One", Status: models.PostStatusPublish})
	env.seedPost(t, models.Post{UserID: "u1", Slug: "draft-one", Title: "Draft One"})
	env.seedPost(t, models.Post{UserID: "u1", Slug: "about", Title: "About Me", Type: models.PostTypePage, Status: models.PostStatusPublish})

	w := env.do(t, http.MethodGet, "/u1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	page := w.Body.String()
	assert.Contains(t, page, "@u1")
	assert.Contains(t, page, `href="/u1/public-one"`)
	assert.NotContains(t, page, "Draft One")
	assert.NotContains(t, page, "About Me")

	// 新建文章时传入作者主页路径，缓存随之失效
	body := mutation(map[string]interface{}{"title": "Fresh", "status": "publish"}, "/u1")
	w = env.do(t, http.MethodPut, "/api/v1/post?userId=u1", body, env.login(t, "u1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/u1", nil, nil)
	assert.Contains(t, w.Body.String(), `href="/u1/fresh"`)
}
