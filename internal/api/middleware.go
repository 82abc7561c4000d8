package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/gomem/gomem/internal/config"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/observability"
)

// recoveryMiddleware converts handler panics into a 500 without killing the
// process.
func recoveryMiddleware(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("http handler panicked", map[string]interface{}{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"panic":  fmt.Sprintf("%v", r),
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
					Code:    "INTERNAL",
					Message: "internal error",
				})
			}
		}()
		c.Next()
	}
}

// requestMetrics records a count and latency per request, tagged with the
// matched route so path parameters don't explode the label space.
func requestMetrics(metrics observability.MetricsClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.IncrementCounter("http_requests", 1)
		if c.Writer.Status() >= http.StatusInternalServerError {
			metrics.IncrementCounter("http_requests_failed", 1)
		}
		metrics.RecordLatency(fmt.Sprintf("http %s %s", c.Request.Method, route), time.Since(start))
	}
}

func requestLogger(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request", map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		})
	}
}

// corsMiddleware is permissive: any origin may call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+auth.HeaderName)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimiter applies a per-client token bucket, keyed by API key when
// present and client IP otherwise. Idle buckets are pruned after the
// configured TTL.
type rateLimiter struct {
	cfg config.RateLimitConfig

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastPrune time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		cfg:       cfg,
		clients:   make(map[string]*clientLimiter),
		lastPrune: time.Now(),
	}
}

func (rl *rateLimiter) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(auth.HeaderName)
		if key == "" {
			key = c.ClientIP()
		}
		if !rl.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				Code:    "RESOURCE_EXHAUSTED",
				Message: "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastPrune) > rl.cfg.TTL {
		for k, cl := range rl.clients {
			if now.Sub(cl.lastSeen) > rl.cfg.TTL {
				delete(rl.clients, k)
			}
		}
		rl.lastPrune = now
	}

	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.cfg.Limit), rl.cfg.Burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.Allow()
}
