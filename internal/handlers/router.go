package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/webrtc-relay/config"
	"github.com/mossy-p/webrtc-relay/internal/middleware"
)

// NewRouter wires every HTTP route of the relay
func NewRouter(cfg *config.Config, hub *Hub, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if !cfg.IsProduction() {
		router.Use(gin.Logger())
	}

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", Health(hub))

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/rooms", CreateRoom(hub))
		apiGroup.GET("/rooms/:roomId", GetRoom(hub))

		if cfg.AdminEnabled() {
			admin := apiGroup.Group("/admin", middleware.JWTAuth(cfg.JWTSecret))
			admin.GET("/rooms", ListRooms(hub))
		}
	}

	// WebSocket signaling endpoint
	router.GET("/ws", HandleSignaling(hub, cfg.Limits, logger))

	RegisterPages(router, cfg.StaticDir)

	return router
}
