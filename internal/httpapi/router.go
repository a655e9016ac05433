package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ambient-sdlc/control-plane/internal/config"
	"github.com/ambient-sdlc/control-plane/internal/observability"
)

// NewRouter builds the Gin engine with the same middleware chain order as
// the teacher's public-api/main.go: recovery -> CORS -> tracing -> structured
// logging -> rate limit -> routes.
func NewRouter(srv *Server, cfg config.Config, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if observability.TracingEnabled() {
		r.Use(otelgin.Middleware("sdlc-supervisor"))
	}

	r.Use(LoggingMiddleware(logger))
	r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/ready", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ready"}) })

	r.POST("/deploy", srv.Deploy)
	r.POST("/sanity-test", srv.SanityTest)
	r.POST("/fix", srv.Fix)
	r.POST("/sdlc-deploy", srv.SDLCDeploy)
	r.GET("/status/:id", srv.Status)
	r.GET("/deployments", srv.Deployments)

	return r
}
