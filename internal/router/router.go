package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/assessment-session/internal/config"
	"github.com/stemsi/assessment-session/internal/handler"
	"github.com/stemsi/assessment-session/internal/middleware"
	"github.com/stemsi/assessment-session/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background goroutines owned by middlewares.
func SetupRouter(ctx context.Context, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── Candidate Session ─────────────────────────────────────────────
	registerLimiter := middleware.NewRateLimiter(ctx, cfg.RegisterRatePerMinute, time.Minute)

	session := router.Group("/api/v1/tests/:test_id/session")
	session.Use(middleware.NoStore())
	{
		session.GET("", handlers.Session.GetSession)
		session.POST("/register", registerLimiter.Middleware(middleware.ClientIPAndParam("test_id")), handlers.Session.Register)
		session.PUT("/answers", handlers.Session.SetAnswer)
		session.POST("/navigate", handlers.Session.Navigate)
		session.POST("/submit", handlers.Session.Submit)
	}

	// ─── WebSocket ─────────────────────────────────────────────────────
	router.GET("/ws/v1/tests/:test_id/stream", handlers.WS.SessionStream)

	return router
}
