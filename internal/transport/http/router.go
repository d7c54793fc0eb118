package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-app/backend/internal/transport/http/middleware"
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	Auth           *AuthHandler
	Messages       *MessageHandler
	Online         *OnlineHandler
	WebSocket      gin.HandlerFunc
	AllowedOrigins []string
	UploadDir      string
	StaticDir      string
}

// NewRouter wires middleware and routes.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(d.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authMW := middleware.AuthMiddleware(d.Auth.Sessions, d.Auth.Cookie)

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/signup", d.Auth.Signup)
		authGroup.POST("/login", d.Auth.Login)
		authGroup.POST("/logout", d.Auth.Logout)
		authGroup.GET("/check", authMW, d.Auth.CheckAuth)
		authGroup.PUT("/profile", authMW, d.Auth.UpdateProfile)
		authGroup.GET("/sessions", authMW, d.Auth.GetSessionHistory)
	}

	messages := router.Group("/api/messages", authMW)
	{
		messages.GET("/users", d.Messages.GetUsersForSidebar)
		messages.GET("/:id", d.Messages.GetMessages)
		messages.POST("/send/:id", d.Messages.SendMessage)
	}

	router.GET("/api/online", authMW, d.Online.GetOnlineUsers)

	// auth handled inside the websocket handler
	if d.WebSocket != nil {
		router.GET("/ws", d.WebSocket)
	}

	if d.UploadDir != "" {
		router.Static("/uploads", d.UploadDir)
	}

	if d.StaticDir != "" {
		serveFrontend(router, d.StaticDir)
	}
	return router
}

// serveFrontend serves the built SPA with an index.html fallback.
func serveFrontend(router *gin.Engine, dir string) {
	if _, err := os.Stat(dir); err != nil {
		return
	}
	index := filepath.Join(dir, "index.html")
	router.Static("/assets", filepath.Join(dir, "assets"))
	router.GET("/", func(c *gin.Context) {
		c.File(index)
	})
	router.NoRoute(func(c *gin.Context) {
		p := c.Request.URL.Path
		if strings.HasPrefix(p, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
			return
		}
		file := filepath.Join(dir, filepath.Clean("/"+p))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}
		if strings.HasPrefix(p, "/assets/") || strings.HasSuffix(p, ".css") || strings.HasSuffix(p, ".js") {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(index)
	})
}
