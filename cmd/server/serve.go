package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"postbase/internal/config"
	"postbase/internal/db"
	"postbase/internal/handlers"
	"postbase/internal/logger"
	"postbase/internal/middleware"
	"postbase/internal/revalidate"
	"postbase/internal/router"
	"postbase/internal/services"
	"postbase/internal/web"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const viewFlushInterval = 30 * time.Second

// app 一次 serve 需要的所有组件
type app struct {
	engine   *gin.Engine
	views    *services.ViewCounter
	notifier *revalidate.Notifier
	bus      *revalidate.RedisBus
}

func newApp(cfg *config.Config, gdb *gorm.DB) (*app, error) {
	gin.SetMode(cfg.GinMode)

	cache, err := revalidate.NewPageCache(cfg.Cache.Size, cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}

	a := &app{views: services.NewViewCounter(gdb, viewFlushInterval)}
	if cfg.Redis.Addr != "" {
		a.bus = revalidate.NewRedisBus(cfg.Redis)
		a.notifier = revalidate.NewNotifier(cache, cfg.Posts.RevalidatePrefixes, a.bus)
	} else {
		a.notifier = revalidate.NewNotifier(cache, cfg.Posts.RevalidatePrefixes, nil)
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.Gin())

	// Setup Sessions
	store := cookie.NewStore([]byte(cfg.Session.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cfg.Session.Name, store))

	renderer, err := web.Renderer()
	if err != nil {
		return nil, err
	}
	r.HTMLRender = renderer

	r.Use(middleware.LoadUser(gdb))

	maxAge := time.Duration(cfg.Session.MaxAge) * time.Second
	router.RegisterRoutes(r, router.Handlers{
		Post:         handlers.NewPostHandler(gdb, services.NewAuthorizer(gdb), a.notifier, a.views, cfg.Posts.FreePlanLimit),
		Page:         handlers.NewPageHandler(gdb, cache, a.views, cfg.SiteURL),
		Auth:         handlers.NewAuthHandler(gdb, services.NewMailService(cfg), maxAge, cfg.SiteURL, handlers.NewGitHubOAuthConfig(cfg)),
		User:         handlers.NewUserHandler(gdb, a.notifier, cfg.Posts.FreePlanLimit),
		Notification: handlers.NewNotificationHandler(gdb),
		Admin:        handlers.NewAdminHandler(gdb, a.notifier),
		SEO:          handlers.NewSEOHandler(gdb, cfg.SiteURL),
	})

	a.engine = r
	return a, nil
}

// subscribe 接收其他实例的 revalidate 广播。退出时不关 bus，
// 其他 goroutine 可能还在 Publish，由 runServe 统一关闭。
func (a *app) subscribe(ctx context.Context) {
	// 订阅失败只影响其他实例的缓存同步，不停服务
	if err := a.bus.Subscribe(ctx, a.notifier.Apply); err != nil {
		logger.L().Warn("revalidate subscriber stopped", zap.Error(err))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.L().Sync()

	if err := db.Init(cfg); err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(db.DB); err != nil {
		return err
	}

	a, err := newApp(cfg, db.DB)
	if err != nil {
		return err
	}
	if a.bus != nil {
		// 所有 goroutine 退出后再关，Shutdown 期间的请求还要广播
		defer a.bus.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.L().Info("postbase server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		a.views.Run(gctx)
		return nil
	})

	if a.bus != nil {
		g.Go(func() error {
			a.subscribe(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.L().Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.L().Info("server gracefully stopped")
	return nil
}
