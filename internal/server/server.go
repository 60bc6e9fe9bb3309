// Package server provides HTTP server setup and configuration.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/nsmlab/teleop-ingest/internal/config"
	"github.com/nsmlab/teleop-ingest/internal/filestore"
	"github.com/nsmlab/teleop-ingest/internal/handlers"
	"github.com/nsmlab/teleop-ingest/internal/middleware"
	"github.com/nsmlab/teleop-ingest/internal/registry"
	"github.com/nsmlab/teleop-ingest/internal/repository"
	"github.com/nsmlab/teleop-ingest/internal/stream"
	"github.com/nsmlab/teleop-ingest/internal/telemetry"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("RequestID", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// NewRateLimitMiddleware creates a rate limiting middleware using ulule/limiter.
// It allows 300 requests per minute per IP address. Websocket upgrades are
// routed outside this limiter; only the REST surface is throttled.
func NewRateLimitMiddleware() gin.HandlerFunc {
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  300,
	}

	store := memory.NewStore()
	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance)
}

// Dependencies holds all dependencies needed to create a server
type Dependencies struct {
	Config      *config.Config
	Health      handlers.Pinger
	RobotRepo   repository.RobotRepository
	SessionRepo repository.SessionRepository
	FrameRepo   repository.FrameRepository
	ChunkRepo   repository.VideoChunkRepository
	Store       *filestore.Store
	Registry    *registry.Registry
	Manager     *telemetry.Manager
	Writer      *telemetry.Writer
	Logger      *slog.Logger
}

// New creates a new Gin router with all routes configured
func New(deps *Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	// gin.New() instead of gin.Default() for explicit control over middleware
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Encoding", "Authorization", "X-Request-ID", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(RequestIDMiddleware())

	apiKey := middleware.NewAPIKeyMiddleware(deps.Config.Auth.APIKey)
	uploadRateLimiter := middleware.NewUploadRateLimitMiddleware()

	uploadHandler := handlers.NewUploadHandler(deps.SessionRepo, deps.ChunkRepo, deps.Store, deps.Config.Storage, deps.Logger)
	robotHandler := handlers.NewRobotHandler(deps.RobotRepo, deps.Registry)
	sessionHandler := handlers.NewSessionHandler(deps.SessionRepo, deps.FrameRepo, deps.ChunkRepo)
	metricsHandler := handlers.NewMetricsHandler(deps.Manager, deps.Registry)
	streamHandler := stream.NewHandler(
		deps.RobotRepo, deps.SessionRepo, deps.Registry, deps.Manager, deps.Writer,
		deps.Config.Ingest, deps.Logger,
	)

	// Websocket upgrades bypass the REST rate limiter and gzip; one long
	// lived connection per robot is the norm
	router.GET("/ws/log/:robot_id", apiKey.Required(), streamHandler.Serve)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(NewRateLimitMiddleware())
	v1.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithDecompressFn(gzip.DefaultDecompressHandle)))
	{
		v1.GET("/health", handlers.HealthHandler)
		v1.GET("/ready", handlers.ReadyHandler(deps.Health))

		// Upload routes (stricter rate limiting, large bodies)
		uploads := v1.Group("/upload")
		uploads.Use(apiKey.Required())
		{
			uploads.POST("/video", uploadRateLimiter, uploadHandler.UploadVideo)
			uploads.POST("/sync", uploadRateLimiter, uploadHandler.UploadSync)
			uploads.GET("/storage-status", uploadHandler.StorageStatus)
		}

		robots := v1.Group("/robots")
		robots.Use(apiKey.Required())
		{
			robots.GET("", robotHandler.ListRobots)
			robots.GET("/:id", robotHandler.GetRobot)
		}

		sessions := v1.Group("/sessions")
		sessions.Use(apiKey.Required())
		{
			sessions.GET("", sessionHandler.ListSessions)
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.GET("/:id/frames", sessionHandler.GetSessionFrames)
		}

		v1.GET("/metrics/ingest", apiKey.Required(), metricsHandler.IngestMetrics)
	}

	// Legacy health path used by older robot firmware
	router.GET("/health", func(c *gin.Context) {
		c.PureJSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	return router
}
