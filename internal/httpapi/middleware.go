package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ambient-sdlc/control-plane/internal/observability"
)

// LoggingMiddleware logs each request with its redacted query string,
// following the teacher's public-api/handlers/middleware.go's
// redactSensitiveParams pattern.
func LoggingMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		redactedQuery := observability.RedactSensitiveParams(c.Request.URL.RawQuery)

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("query", redactedQuery).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
