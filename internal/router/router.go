package router

import (
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/config"
	"github.com/edquest/proctor-backend/internal/handler"
	"github.com/edquest/proctor-backend/internal/middleware"
	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Activity *handler.ActivityHandler
	Auth     *handler.AuthHandler
	Test     *handler.TestHandler
	Admin    *handler.AdminHandler
	Monitor  *handler.MonitorHandler
	WS       *handler.WSHandler
}

// Deps are the non-handler collaborators of the router.
type Deps struct {
	Auth        middleware.TokenValidator
	Redis       *redis.Client
	Gatherer    prometheus.Gatherer
	IngestLimit *middleware.RateLimiter
	Log         zerolog.Logger
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, deps Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(response.AccessLog(deps.Log))

	// ─── Metrics ───────────────────────────────────────────────────────
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// ─── 1. Legacy activity-log API ────────────────────────────────────
	legacy := router.Group("/api")
	legacy.Use(middleware.NoStore())
	{
		legacy.GET("/health", handler.Health)

		ingest := []gin.HandlerFunc{}
		if deps.IngestLimit != nil {
			ingest = append(ingest, deps.IngestLimit.Middleware(true))
		}
		legacy.POST("/activity-logs", append(ingest, handlers.Activity.SaveLogs)...)
		legacy.GET("/activity-logs/:testId",
			middleware.Brotli(brotli.DefaultCompression),
			handlers.Activity.ListByTest,
		)
	}

	// ─── 2. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(deps.Auth), handlers.Auth.Me)
	}

	// ─── 3. Candidate Group (JWT) ──────────────────────────────────────
	tests := router.Group("/api/v1/tests")
	tests.Use(middleware.RequireJWT(deps.Auth))
	{
		tests.GET("", handlers.Test.List)
		tests.GET("/:test_id", handlers.Test.Paper)
	}

	// ─── 4. WebSocket Group (query-token auth, one stream per attempt) ─
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(deps.Auth))
	{
		ws.GET("/exams/:test_id/proctor",
			middleware.SingleProctorStream(deps.Redis, deps.Log),
			handlers.WS.ProctorStream,
		)
	}

	// ─── 5. Admin Group (JWT + role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireJWT(deps.Auth),
		middleware.RequireRole(model.RoleAdmin),
		middleware.NoStore(),
	)
	{
		reports := adminAPI.Group("", middleware.Brotli(brotli.DefaultCompression))
		reports.GET("/activity-sessions", handlers.Admin.ListActivitySessions)
		reports.GET("/attempts", handlers.Admin.ListAttempts)
		reports.GET("/violations", handlers.Admin.ViolationReport)

		adminAPI.GET("/tests/:test_id/monitor", handlers.Monitor.MonitorTestSSE)
		adminAPI.GET("/activity-feed", handlers.Monitor.ActivityFeedSSE)
	}

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	return router
}
