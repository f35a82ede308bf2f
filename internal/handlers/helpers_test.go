package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"postbase/internal/db/dbtest"
	"postbase/internal/middleware"
	"postbase/internal/models"
	"postbase/internal/revalidate"
	"postbase/internal/services"
	"postbase/internal/web"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type testEnv struct {
	db     *gorm.DB
	engine *gin.Engine
	cache  *revalidate.PageCache
	posts  *PostHandler
	views  *services.ViewCounter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := dbtest.New(t)
	cache, err := revalidate.NewPageCache(100, time.Minute)
	require.NoError(t, err)
	notifier := revalidate.NewNotifier(cache, []string{"/"}, nil)
	views := services.NewViewCounter(gdb, time.Hour)

	posts := NewPostHandler(gdb, services.NewAuthorizer(gdb), notifier, views, 3)
	posts.now = func() time.Time { return fixedNow }

	users := NewUserHandler(gdb, notifier, 3)
	users.now = func() time.Time { return fixedNow }

	r := gin.New()
	r.Use(sessions.Sessions("postbase_session", cookie.NewStore([]byte("test-secret"))))
	renderer, err := web.Renderer()
	require.NoError(t, err)
	r.HTMLRender = renderer
	r.Use(middleware.LoadUser(gdb))

	// 测试用登录入口
	r.GET("/test/login/:uid", func(c *gin.Context) {
		if err := services.StartSession(sessions.Default(c), c.Param("uid"), time.Hour); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})

	api := r.Group("/api/v1")
	api.GET("/post", posts.Get)
	api.POST("/post", posts.Update)
	api.PUT("/post", posts.Create)
	api.DELETE("/post", posts.Delete)
	api.GET("/post/list", posts.List)
	api.GET("/post/count", posts.Count)
	api.POST("/post/view", posts.View)

	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	authorized.GET("/profile", users.Profile)
	authorized.POST("/profile", users.UpdateProfile)
	authorized.GET("/dashboard", users.Dashboard)

	notifications := NewNotificationHandler(gdb)
	authorized.GET("/notifications", notifications.List)
	authorized.POST("/notifications/read-all", notifications.ReadAll)
	authorized.POST("/notifications/:id/read", notifications.Read)
	authorized.DELETE("/notifications/:id", notifications.Delete)

	pages := NewPageHandler(gdb, cache, views, "https://example.test")
	r.GET("/:username", pages.Author)
	r.GET("/:username/:slug", pages.Post)

	return &testEnv{db: gdb, engine: r, cache: cache, posts: posts, views: views}
}

// seedUser 创建 users 和 profiles 两行，username 与 id 相同
func (e *testEnv) seedUser(t *testing.T, id, plan string) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.User{ID: id, Email: id + "@example.test"}).Error)
	require.NoError(t, e.db.Create(&models.Profile{ID: id, Username: id, Plan: plan, Role: models.RoleUser}).Error)
}

func (e *testEnv) seedPost(t *testing.T, post models.Post) models.Post {
	t.Helper()
	if post.Type == "" {
		post.Type = models.PostTypePost
	}
	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}
	require.NoError(t, e.db.Omit("Author").Create(&post).Error)
	return post
}

func (e *testEnv) countPosts(t *testing.T, uid string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Post{}).Where("user_id = ?", uid).Count(&n).Error)
	return n
}

// login 返回带有 uid 会话的 cookie
func (e *testEnv) login(t *testing.T, uid string) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test/login/"+uid, nil)
	e.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data        json.RawMessage        `json:"data"`
	Error       map[string]interface{} `json:"error"`
	Revalidated []string               `json:"revalidated"`
	Now         *int64                 `json:"now"`
	Count       *int64                 `json:"count"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodePost(t *testing.T, env envelope) models.Post {
	t.Helper()
	var post models.Post
	require.NoError(t, json.Unmarshal(env.Data, &post))
	return post
}

// mutation 构造 {formData, options} 请求体
func mutation(formData map[string]interface{}, paths ...string) map[string]interface{} {
	if paths == nil {
		paths = []string{}
	}
	return map[string]interface{}{
		"formData": formData,
		"options":  map[string]interface{}{"revalidatePaths": paths},
	}
}
