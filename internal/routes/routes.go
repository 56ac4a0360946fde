package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soloking1412/Unicorn-Launchpad/internal/handlers"
	"github.com/soloking1412/Unicorn-Launchpad/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	RateLimit      middleware.RateLimiterConfig

	// Closing Stop ends background middleware work
	Stop <-chan struct{}
}

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics(), middleware.CORS(opts.AllowedOrigins))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	if opts.RateLimit.RequestsPerSecond > 0 {
		api.Use(middleware.RateLimiterMiddleware(opts.RateLimit, opts.Stop))
	}
	SetupProjectRoutes(api, h)
	SetupSnapshotRoutes(api, h)

	return r
}
