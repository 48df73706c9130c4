package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/supportchat/internal/api/middleware"
	"github.com/immxrtalbeast/supportchat/internal/api/ws"
	"github.com/immxrtalbeast/supportchat/internal/auth"
)

type RouterConfig struct {
	AllowedOrigins []string
	UploadDir      string
	UploadPrefix   string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func SetupRouter(cfg RouterConfig, authn auth.Authenticator, chatController *ChatController, realtime *ws.Controller, log *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	config := cors.DefaultConfig()
	config.AllowOrigins = cfg.AllowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	if cfg.UploadDir != "" && cfg.UploadPrefix != "" {
		router.Static(cfg.UploadPrefix, cfg.UploadDir)
	}

	api := router.Group("/api/chat")
	api.Use(middleware.Authenticate(authn, log))

	if chatController != nil {
		api.POST("/join", chatController.Join)

		rooms := api.Group("/rooms")
		rooms.POST("/:roomID/messages", chatController.SendMessage)
		rooms.GET("/:roomID/messages", chatController.ListMessages)

		staff := rooms.Group("", middleware.RequireStaff())
		staff.GET("", chatController.ListRooms)
		staff.POST("/:roomID/read", chatController.MarkRead)
		staff.PATCH("/:roomID/status", chatController.SetStatus)
		staff.DELETE("/:roomID", chatController.DeleteRoom)
		staff.GET("/:roomID/online", chatController.Online)
	}

	if realtime != nil {
		api.GET("/ws", realtime.Serve)
	}

	return router
}
