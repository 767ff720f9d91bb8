package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"campusfind/internal/infra/config"
	"campusfind/internal/infra/obs"
)

type Handlers struct {
	Auth           AuthHTTP
	Items          ItemHTTP
	Chat           ChatHTTP
	Inbox          InboxHTTP
	AI             AIHTTP
	Photos         PhotoHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	registerSwaggerRoutes(router)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
		api.PUT("/auth/me", h.Auth.UpdateMe)
	}
	if h.Items != nil {
		api.GET("/items", h.Items.List)
		api.POST("/items", h.Items.Create)
		api.GET("/items/:id", h.Items.Get)
		api.POST("/items/:id/resolve", h.Items.Resolve)
	}
	if h.Chat != nil {
		api.GET("/items/:id/messages", h.Chat.History)
		api.POST("/items/:id/messages", h.Chat.Send)
	}
	if h.Inbox != nil {
		api.GET("/inbox/ws", h.Inbox.Stream)
	}
	if h.AI != nil {
		api.POST("/ai/item-details", h.AI.ItemDetails)
	}
	if h.Photos != nil {
		api.POST("/photos", h.Photos.Upload)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
