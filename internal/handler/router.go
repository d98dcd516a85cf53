package handler

import (
	"feed-ai-go/internal/middleware"
	"feed-ai-go/internal/service"
	"feed-ai-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// RouterDeps 是注册路由所需的全部依赖。
type RouterDeps struct {
	JWTManager      *token.JWTManager
	UserService     service.UserService
	FeedbackService service.FeedbackService
	NewsService     service.NewsService
	MaxUploadBytes  int64
}

// NewRouter 创建路由引擎并注册 /api 下的全部路由。
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	authHandler := NewAuthHandler(d.UserService)
	userHandler := NewUserHandler(d.UserService)
	searchHandler := NewSearchHandler(d.FeedbackService, d.MaxUploadBytes)
	newsHandler := NewNewsHandler(d.NewsService)

	authed := middleware.AuthMiddleware(d.JWTManager, d.UserService)
	adminOnly := middleware.AdminAuthMiddleware()

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/login/swagger", authHandler.LoginForm)
			auth.GET("/test-auth", authed, authHandler.TestAuth)
			auth.POST("/logout", authed, authHandler.Logout)
		}

		users := api.Group("/users")
		{
			// 公开注册
			users.POST("", userHandler.Register)

			users.GET("", authed, userHandler.ListPublic)
			users.GET("/me", authed, userHandler.Me)
			users.PATCH("/:id", authed, userHandler.Update)

			admin := users.Group("/admin")
			admin.Use(authed, adminOnly)
			{
				admin.GET("", userHandler.List)
				admin.GET("/:id", userHandler.Get)
				admin.DELETE("/:id", userHandler.Delete)
			}
		}

		search := api.Group("/search/input")
		search.Use(authed)
		{
			search.POST("", searchHandler.Upload)
			search.POST("/filter", searchHandler.Filter)
			search.GET("/group", searchHandler.Group)
			search.GET("/distinct_tag", searchHandler.DistinctTags)
			// 关键词批次的标签包含 "/"，因此使用通配参数
			search.DELETE("/delete/*tag", searchHandler.Delete)
		}

		news := api.Group("/news")
		news.Use(authed)
		{
			news.POST("/analyze", newsHandler.Analyze)
		}
	}
	return r
}
