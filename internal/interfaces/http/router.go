package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ChargeMatch/internal/interfaces/http/handlers"
	"github.com/turtacn/ChargeMatch/internal/interfaces/http/middleware"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.  Nil members are skipped.
type RouterConfig struct {
	// Handlers
	ChargeHandler *handlers.ChargeHandler
	HealthHandler *handlers.HealthHandler

	// Middleware
	CORS        *middleware.CORSConfig
	RateLimiter middleware.RateLimiter
	RateLimit   middleware.RateLimitConfig
	Logging     middleware.LoggingConfig
	MaxBodySize int64

	// Infrastructure
	Logger           logging.Logger
	Metrics          middleware.HTTPRecorder
	MetricsCollector prometheus.MetricsCollector

	// Mode is the gin mode: "debug", "release" or "test".
	Mode string
}

// NewRouter builds the route tree:
//
//	GET  /healthz, /readyz, /healthz/detail
//	GET  /metrics
//	POST /api/v1/charge
//	GET  /api/v1/variants, /api/v1/repository/stats
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware, outermost first.
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID())
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.BodyLimit(cfg.MaxBodySize))
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit))
	}
	if cfg.ChargeHandler != nil {
		cfg.ChargeHandler.RegisterRoutes(api)
	}

	return r
}

//Personal.AI order the ending
