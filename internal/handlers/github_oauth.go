package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"postbase/internal/config"
	"postbase/internal/logger"
	"postbase/internal/models"
	"postbase/internal/services"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"gorm.io/gorm"
)

const oauthStateKey = "oauth_state"

// NewGitHubOAuthConfig 未配置 client id/secret 时返回 nil
func NewGitHubOAuthConfig(cfg *config.Config) *oauth2.Config {
	if !cfg.GitHubEnabled() {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: cfg.GitHub.ClientSecret,
		RedirectURL:  strings.TrimRight(cfg.SiteURL, "/") + "/auth/github/callback",
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}
}

// GitHubUser GitHub /user 接口返回的字段
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Bio       string `json:"bio"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// generateStateToken 生成随机 state token
func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GitHubLogin GET /auth/github
func (h *AuthHandler) GitHubLogin(c *gin.Context) {
	if h.github == nil {
		RenderError(c, http.StatusNotFound, "GitHub sign-in is not enabled")
		return
	}

	state, err := generateStateToken()
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not start sign-in")
		return
	}

	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	if err := session.Save(); err != nil {
		logger.L().Error("save oauth state failed", zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Could not start sign-in")
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.github.AuthCodeURL(state))
}

// GitHubCallback GET /auth/github/callback
func (h *AuthHandler) GitHubCallback(c *gin.Context) {
	if h.github == nil {
		RenderError(c, http.StatusNotFound, "GitHub sign-in is not enabled")
		return
	}

	session := sessions.Default(c)
	savedState, _ := session.Get(oauthStateKey).(string)
	if savedState == "" || c.Query("state") != savedState {
		RenderError(c, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	session.Delete(oauthStateKey)
	_ = session.Save()

	code := c.Query("code")
	if code == "" {
		RenderError(c, http.StatusBadRequest, "Missing authorization code")
		return
	}

	ctx := c.Request.Context()
	token, err := h.github.Exchange(ctx, code)
	if err != nil {
		logger.L().Warn("github token exchange failed", zap.Error(err))
		RenderError(c, http.StatusBadGateway, "Could not sign in with GitHub")
		return
	}

	client := h.github.Client(ctx, token)
	ghUser, err := h.fetchGitHubUser(ctx, client)
	if err != nil {
		logger.L().Warn("fetch github user failed", zap.Error(err))
		RenderError(c, http.StatusBadGateway, "Could not sign in with GitHub")
		return
	}

	user, err := h.githubAccount(ctx, ghUser)
	if err != nil {
		logger.L().Error("github account failed", zap.Int64("github_id", ghUser.ID), zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Could not sign in with GitHub")
		return
	}

	if err := services.StartSession(session, user.ID, h.maxAge); err != nil {
		logger.L().Error("save session failed", zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Could not sign in with GitHub")
		return
	}

	c.Redirect(http.StatusFound, "/")
}

// githubAccount 已绑定的直接登录，同邮箱的账号自动绑定，否则新建账号
func (h *AuthHandler) githubAccount(ctx context.Context, gh *GitHubUser) (*models.User, error) {
	githubID := strconv.FormatInt(gh.ID, 10)
	db := h.db.WithContext(ctx)

	var user models.User
	err := db.Where("github_id = ?", githubID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	email := strings.ToLower(gh.Email)
	err = db.Where("email = ?", email).First(&user).Error
	if err == nil {
		if err := db.Model(&user).Update("github_id", githubID).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	username, err := services.AvailableUsername(ctx, h.db, gh.Login)
	if err != nil {
		return nil, err
	}
	created, _, err := services.CreateAccount(ctx, h.db, services.NewAccount{
		Email:     email,
		Username:  username,
		FullName:  gh.Name,
		AvatarURL: gh.AvatarURL,
		GitHubID:  githubID,
	})
	if err != nil {
		return nil, err
	}
	logger.L().Info("user signed up with github", zap.String("user_id", created.ID), zap.String("username", username))
	return created, nil
}

func (h *AuthHandler) fetchGitHubUser(ctx context.Context, client *http.Client) (*GitHubUser, error) {
	var gh GitHubUser
	if err := h.githubGet(ctx, client, "/user", &gh); err != nil {
		return nil, err
	}
	if gh.Email != "" {
		return &gh, nil
	}

	// 邮箱未公开时从 /user/emails 取主邮箱
	var emails []githubEmail
	if err := h.githubGet(ctx, client, "/user/emails", &emails); err != nil {
		return nil, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			gh.Email = e.Email
			break
		}
	}
	if gh.Email == "" {
		return nil, errors.New("github account has no verified primary email")
	}
	return &gh, nil
}

func (h *AuthHandler) githubGet(ctx context.Context, client *http.Client, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.githubAPI+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
