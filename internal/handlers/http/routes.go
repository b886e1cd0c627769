package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cinesync/internal/core/ports"
	"cinesync/internal/infrastructure/middleware"
	"cinesync/internal/infrastructure/monitoring"
	"cinesync/pkg/config"
	"cinesync/pkg/logger"
)

// RouterDeps holds what the router mounts. Nil services leave their
// routes out, which is how the relay binary runs without REST.
type RouterDeps struct {
	Config   *config.Config
	Logger   *logger.ContextLogger
	Rooms    ports.RoomService
	Streams  ports.StreamService
	Relay    ports.RelayService
	Presence ports.PresenceService

	WebSocket http.HandlerFunc
	Health    *monitoring.HealthChecker
	Metrics   http.Handler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(deps.Logger),
		middleware.RequestLoggingMiddleware(deps.Logger),
	)
	if deps.Config.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	if deps.Health != nil {
		router.GET("/health", deps.Health.LivenessHandler)
		router.GET("/ready", deps.Health.ReadinessHandler)
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	if deps.WebSocket != nil {
		router.GET(deps.Config.Realtime.Path, gin.WrapF(deps.WebSocket))
	}

	if deps.Rooms == nil {
		return router
	}

	api := router.Group("/api")
	api.Use(
		middleware.NewHTTPRateLimitMiddleware(deps.Config),
		middleware.IdentityMiddleware(),
		middleware.ErrorHandlerMiddleware(deps.Logger),
	)
	NewRoomHandler(deps.Rooms, deps.Presence).SetupRoutes(api)
	NewStreamHandler(deps.Streams).SetupRoutes(api)
	NewChatHandler(deps.Relay).SetupRoutes(api)

	return router
}
