package handlers

import (
	"net/http"
	"testing"

	"postbase/internal/middleware"
	"postbase/internal/models"
	"postbase/internal/revalidate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)

	h := NewAdminHandler(env.db, revalidate.NewNotifier(env.cache, []string{"/"}, nil))
	admin := env.engine.Group("/api/v1/admin", middleware.AuthRequired(), middleware.AdminRequired())
	admin.GET("/users", h.ListUsers)
	admin.PUT("/users/:id/plan", h.SetPlan)
	admin.POST("/posts/:id/hide", h.HidePost)

	seo := NewSEOHandler(env.db, "https://example.test/")
	env.engine.GET("/robots.txt", seo.RobotsTxt)
	env.engine.GET("/sitemap.xml", seo.SitemapXML)
	env.engine.GET("/feed.xml", seo.RSSFeed)
	return env
}

func TestAdmin_RequiresRole(t *testing.T) {
	env := newAdminEnv(t)
	env.seedUser(t, "u1", models.PlanFree)

	w := env.do(t, http.MethodGet, "/api/v1/admin/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/admin/users", nil, env.login(t, "u1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdmin_SetPlanLiftsQuota(t *testing.T) {
	env := newAdminEnv(t)
	env.seedUser(t, "boss", models.PlanPro)
	require.NoError(t, env.db.Model(&models.Profile{}).Where("id = ?", "boss").Update("role", models.RoleAdmin).Error)
	env.seedUser(t, "u1", models.PlanFree)
	for _, s := range []string{"a", "b", "c"} {
		env.seedPost(t, models.Post{UserID: "u1", Slug: s, Title: s})
	}

	w := env.do(t, http.MethodGet, "/api/v1/admin/users", nil, env.login(t, "boss"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), *decode(t, w).Count)

	w = env.do(t, http.MethodPut, "/api/v1/admin/users/u1/plan", map[string]interface{}{"plan": "gold"}, env.login(t, "boss"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/admin/users/u1/plan", map[string]interface{}{"plan": "pro"}, env.login(t, "boss"))
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/post?userId=u1", mutation(map[string]interface{}{"title": "Fourth"}), env.login(t, "u1"))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(4), env.countPosts(t, "u1"))
}

func TestAdmin_HidePost(t *testing.T) {
	env := newAdminEnv(t)
	env.seedUser(t, "boss", models.PlanPro)
	require.NoError(t, env.db.Model(&models.Profile{}).Where("id = ?", "boss").Update("role", models.RoleAdmin).Error)
	env.seedUser(t, "u1", models.PlanFree)
	env.seedPost(t, models.Post{ID: 4, UserID: "u1", Slug: "spam", Title: "Spam", Status: models.PostStatusPublish})

	w := env.do(t, http.MethodGet, "/u1/spam", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/posts/4/hide", nil, env.login(t, "boss"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"/u1/spam", "/u1"}, decode(t, w).Revalidated)

	w = env.do(t, http.MethodGet, "/u1/spam", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/posts/404/hide", nil, env.login(t, "boss"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSEO(t *testing.T) {
	env := newAdminEnv(t)
	env.seedUser(t, "u1", models.PlanFree)
	env.seedPost(t, models.Post{UserID: "u1", Slug: "fish-chips", Title: "Fish & Chips", Status: models.PostStatusPublish, PublishedAt: &fixedNow})
	env.seedPost(t, models.Post{UserID: "u1", Slug: "hidden", Title: "Hidden"})

	w := env.do(t, http.MethodGet, "/robots.txt", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Disallow: /api/")
	assert.Contains(t, w.Body.String(), "Sitemap: https://example.test/sitemap.xml")

	w = env.do(t, http.MethodGet, "/sitemap.xml", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<loc>https://example.test/u1</loc>")
	assert.Contains(t, w.Body.String(), "<loc>https://example.test/u1/fish-chips</loc>")
	assert.NotContains(t, w.Body.String(), "hidden")

	w = env.do(t, http.MethodGet, "/feed.xml", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Fish &amp; Chips")
}
