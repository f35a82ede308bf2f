package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"postbase/internal/models"
	"postbase/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfile_RenameRevalidatesBothPaths(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", models.PlanFree)
	env.seedPost(t, models.Post{UserID: "u1", Slug: "hello", Title: "Hello", Status: models.PostStatusPublish})
	env.seedPost(t, models.Post{UserID: "u1", Slug: "wip", Title: "WIP"})
	env.cache.Set("/u1/hello", "old page")

	body := map[string]interface{}{"username": "Writer", "bio": " hi "}
	w := env.do(t, http.MethodPost, "/api/v1/profile", body, env.login(t, "u1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode(t, w)
	assert.Equal(t, []string{"/u1", "/u1/hello", "/writer", "/writer/hello"}, res.Revalidated)
	require.NotNil(t, res.Now)
	assert.Equal(t, fixedNow.UnixMilli(), *res.Now)
	assert.Nil(t, env.cache.Get("/u1/hello"))

	var profile models.Profile
	require.NoError(t, json.Unmarshal(res.Data, &profile))
	assert.Equal(t, "writer", profile.Username)
	assert.Equal(t, "hi", profile.Bio)
}

func TestUpdateProfile_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", models.PlanFree)
	env.seedUser(t, "taken", models.PlanFree)
	cookie := env.login(t, "u1")

	tests := []struct {
		name     string
		username string
		status   int
		code     string
	}{
		{"reserved", "admin", http.StatusBadRequest, "invalid_username"},
		{"bad characters", "no spaces", http.StatusBadRequest, "invalid_username"},
		{"taken", "taken", http.StatusConflict, "username_already_taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/profile", map[string]interface{}{"username": tt.username}, cookie)
			require.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Error["code"])
		})
	}

	w := env.do(t, http.MethodPost, "/api/v1/profile", map[string]interface{}{"username": "whoever"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDashboard_RemainingPosts(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", models.PlanFree)
	env.seedUser(t, "u2", models.PlanPro)
	env.seedPost(t, models.Post{UserID: "u1", Slug: "a", Title: "A", Status: models.PostStatusPublish})
	env.seedPost(t, models.Post{UserID: "u1", Slug: "about", Title: "About", Type: models.PostTypePage})
	require.NoError(t, services.Notify(context.Background(), env.db, "u1", models.NotificationTypeSystem, "welcome"))

	var dash struct {
		Plan      string    `json:"plan"`
		Posts     PostCount `json:"posts"`
		Pages     PostCount `json:"pages"`
		Remaining *int64    `json:"remaining_posts"`
		Unread    int64     `json:"unread"`
	}

	w := env.do(t, http.MethodGet, "/api/v1/dashboard", nil, env.login(t, "u1"))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &dash))
	assert.Equal(t, models.PlanFree, dash.Plan)
	assert.Equal(t, PostCount{All: 1, Publish: 1}, dash.Posts)
	assert.Equal(t, PostCount{All: 1, Draft: 1}, dash.Pages)
	require.NotNil(t, dash.Remaining)
	assert.Equal(t, int64(1), *dash.Remaining)
	assert.Equal(t, int64(1), dash.Unread)

	dash.Remaining = nil
	w = env.do(t, http.MethodGet, "/api/v1/dashboard", nil, env.login(t, "u2"))
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &dash))
	assert.Nil(t, dash.Remaining)
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", models.PlanFree)
	env.seedUser(t, "u2", models.PlanFree)
	ctx := context.Background()
	require.NoError(t, services.Notify(ctx, env.db, "u1", models.NotificationTypeSystem, "one"))
	require.NoError(t, services.Notify(ctx, env.db, "u1", models.NotificationTypeQuota, "two"))
	require.NoError(t, services.Notify(ctx, env.db, "u2", models.NotificationTypeSystem, "other"))

	var theirs models.Notification
	require.NoError(t, env.db.Where("user_id = ?", "u2").First(&theirs).Error)

	cookie := env.login(t, "u1")

	w := env.do(t, http.MethodGet, "/api/v1/notifications", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data   []models.Notification `json:"data"`
		Unread int64                 `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)
	assert.Equal(t, int64(2), list.Unread)

	w = env.do(t, http.MethodPost, "/api/v1/notifications/"+fmt.Sprint(list.Data[0].ID)+"/read", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), services.UnreadCount(ctx, env.db, "u1"))

	// 别人的通知一律 404
	w = env.do(t, http.MethodPost, "/api/v1/notifications/"+fmt.Sprint(theirs.ID)+"/read", nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodDelete, "/api/v1/notifications/"+fmt.Sprint(theirs.ID), nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/notifications/read-all", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":1}`, string(decode(t, w).Data))
	assert.Zero(t, services.UnreadCount(ctx, env.db, "u1"))

	w = env.do(t, http.MethodDelete, "/api/v1/notifications/"+fmt.Sprint(list.Data[1].ID), nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	var left int64
	env.db.Model(&models.Notification{}).Where("user_id = ?", "u1").Count(&left)
	assert.Equal(t, int64(1), left)
}
