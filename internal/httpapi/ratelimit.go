package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimitMiddleware rate-limits requests per client IP, adapted from the
// teacher's public-api/handlers/ratelimit.go with the hardcoded RPS/burst
// replaced by the caller's config.Config values.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var limiters sync.Map
	cleanupInterval := 5 * time.Minute

	go func() {
		for {
			time.Sleep(cleanupInterval)
			cutoff := time.Now().Add(-cleanupInterval)
			limiters.Range(func(key, value interface{}) bool {
				entry := value.(*limiterEntry)
				if entry.lastAccess.Before(cutoff) {
					limiters.Delete(key)
				}
				return true
			})
		}
	}()

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		now := time.Now()

		var limiter *rate.Limiter
		if entry, ok := limiters.Load(clientIP); ok {
			e := entry.(*limiterEntry)
			e.lastAccess = now
			limiter = e.limiter
		} else {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			actual, _ := limiters.LoadOrStore(clientIP, &limiterEntry{limiter: limiter, lastAccess: now})
			limiter = actual.(*limiterEntry).limiter
		}

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "retry_after": "1s"})
			c.Abort()
			return
		}
		c.Next()
	}
}
