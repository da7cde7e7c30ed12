package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/reloop/marketplace/internal/handlers"
	appmw "github.com/reloop/marketplace/internal/middleware"
	"github.com/reloop/marketplace/internal/token"
)

type Deps struct {
	DB             *gorm.DB
	Codec          *token.Codec
	AuthHandler    *handlers.AuthHandler
	PostHandler    *handlers.PostHandler
	CommentHandler *handlers.CommentHandler
	UserHandler    *handlers.UserHandler
	SearchHandler  *handlers.SearchHandler
	TipsHandler    *handlers.TipsHandler
	UploadDir      string
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	e.Static("/uploads", d.UploadDir)

	gate := appmw.RequireAuth(d.Codec)

	auth := e.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)
	auth.GET("/google", d.AuthHandler.GoogleLogin)
	auth.GET("/google/callback", d.AuthHandler.GoogleCallback)

	posts := e.Group("/posts")
	posts.GET("", d.PostHandler.GetPosts)
	posts.GET("/search", d.SearchHandler.Search)
	posts.GET("/:id", d.PostHandler.GetPost)
	posts.POST("", d.PostHandler.CreatePost, gate)
	posts.PUT("/:id", d.PostHandler.UpdatePost, gate)
	posts.DELETE("/:id", d.PostHandler.DeletePost, gate)

	comments := e.Group("/comments")
	comments.GET("", d.CommentHandler.GetComments)
	comments.GET("/:id", d.CommentHandler.GetComment)
	comments.POST("", d.CommentHandler.CreateComment, gate)
	comments.PUT("/:id", d.CommentHandler.UpdateComment, gate)
	comments.DELETE("/:id", d.CommentHandler.DeleteComment, gate)

	users := e.Group("/users", gate)
	users.PUT("/:id", d.UserHandler.UpdateUser)
	users.POST("/:id/sell", d.UserHandler.SellProduct)

	e.GET("/tips", d.TipsHandler.GetTips, gate)
}
