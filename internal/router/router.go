package router

import (
	"postbase/internal/handlers"
	"postbase/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers 所有路由用到的 handler，由 main 组装
type Handlers struct {
	Post         *handlers.PostHandler
	Page         *handlers.PageHandler
	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Notification *handlers.NotificationHandler
	Admin        *handlers.AdminHandler
	SEO          *handlers.SEOHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	// SEO
	r.GET("/robots.txt", h.SEO.RobotsTxt)   // robots.txt
	r.GET("/sitemap.xml", h.SEO.SitemapXML) // 站点地图
	r.GET("/feed.xml", h.SEO.RSSFeed)       // RSS

	// GitHub 登录
	r.GET("/auth/github", h.Auth.GitHubLogin)             // 跳转 GitHub 授权
	r.GET("/auth/github/callback", h.Auth.GitHubCallback) // GitHub 回调

	api := r.Group("/api/v1")
	{
		// 文章 CRUD，鉴权在 handler 内完成
		api.GET("/post", h.Post.Get)       // 单篇文章
		api.POST("/post", h.Post.Update)   // 更新
		api.PUT("/post", h.Post.Create)    // 新建
		api.DELETE("/post", h.Post.Delete) // 删除

		api.GET("/post/list", h.Post.List)   // 文章列表
		api.GET("/post/count", h.Post.Count) // 按状态统计
		api.POST("/post/view", h.Post.View)  // 浏览量 +1

		api.POST("/auth/signup", h.Auth.SignUp)                  // 注册
		api.POST("/auth/signin", h.Auth.SignIn)                  // 登录
		api.POST("/auth/signout", h.Auth.SignOut)                // 退出
		api.POST("/auth/forgot-password", h.Auth.ForgotPassword) // 发送找回密码验证码
		api.POST("/auth/reset-password", h.Auth.ResetPassword)   // 用验证码重置密码
	}

	// 需要登录 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/auth/password", h.Auth.ChangePassword) // 修改密码

		authorized.GET("/profile", h.User.Profile)        // 我的资料
		authorized.POST("/profile", h.User.UpdateProfile) // 更新资料
		authorized.GET("/dashboard", h.User.Dashboard)    // 仪表盘概览

		authorized.GET("/notifications", h.Notification.List)              // 通知列表
		authorized.POST("/notifications/read-all", h.Notification.ReadAll) // 全部已读
		authorized.POST("/notifications/:id/read", h.Notification.Read)    // 单条已读
		authorized.DELETE("/notifications/:id", h.Notification.Delete)     // 删除通知
	}

	// 管理员
	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		admin.GET("/users", h.Admin.ListUsers)          // 用户列表
		admin.PUT("/users/:id/plan", h.Admin.SetPlan)   // 修改订阅计划
		admin.POST("/posts/:id/hide", h.Admin.HidePost) // 隐藏文章
	}

	// 公开页面放在最后，/:username 会匹配所有未注册的一级路径
	r.GET("/:username", h.Page.Author)     // 作者主页
	r.GET("/:username/:slug", h.Page.Post) // 文章页
}
