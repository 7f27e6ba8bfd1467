// internal/app/router.go
package app

import (
	authHandler "blog-session/internal/handlers/auth"
	blogHandler "blog-session/internal/handlers/blog"
	"blog-session/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	BlogHandler    *blogHandler.BlogHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	// ==================== Health Check ====================
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ==================== Public Auth Routes ====================
	authPublic := r.Group("/auth")
	{
		authPublic.POST("/register", h.AuthHandler.Register)
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/refresh", h.AuthHandler.Refresh)

		// Hand-off tokens are checked by the handlers themselves.
		authPublic.GET("/oauth/userinfo", h.AuthHandler.OAuthUserInfo)
		authPublic.POST("/oauth/:provider", h.AuthHandler.LinkOAuth)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := r.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/change-password", h.AuthHandler.ChangePassword)
		authProtected.POST("/set-password", h.AuthHandler.SetPassword)
		authProtected.PUT("/join-admin", h.AuthHandler.JoinAdmin)
		authProtected.DELETE("/oauth/unlink/:provider", h.AuthHandler.UnlinkOAuth)
		authProtected.DELETE("/:id", h.AuthHandler.DeleteUser)
	}

	// ==================== Admin Routes ====================
	admin := r.Group("/auth")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.GET("/users", h.AuthHandler.ListUsers)
	}

	// ==================== Development OAuth ====================
	dev := r.Group("/dev/oauth")
	dev.Use(h.AuthMiddleware.OptionalAuth())
	{
		dev.POST("/:provider/authorize", h.AuthHandler.Authorize)
	}

	// ==================== Posts ====================
	postsPublic := r.Group("/posts")
	postsPublic.Use(h.AuthMiddleware.OptionalAuth())
	{
		postsPublic.GET("", h.BlogHandler.ListPosts)
		postsPublic.GET("/:id", h.BlogHandler.GetPost)
	}

	postsProtected := r.Group("/posts")
	postsProtected.Use(h.AuthMiddleware.Auth())
	{
		postsProtected.POST("/:id/like", h.BlogHandler.Like)
		postsProtected.DELETE("/:id/like", h.BlogHandler.Unlike)
		postsProtected.POST("/:id/comments", h.BlogHandler.AddComment)
	}
}
