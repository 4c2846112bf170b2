// internal/middleware/rate_limit_middleware.go
package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ecf-service/internal/config"
	"ecf-service/internal/utils"
)

// idleLimiterTTL is how long an idle client keeps its limiter.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
	logger  *zap.Logger
}

// NewRateLimiter allows requests per window for each client, with bursts
// up to requests.
func NewRateLimiter(requests int, window time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		now:     time.Now,
		logger:  logger,
	}
}

// Allow reports whether key may make a request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cl, ok := rl.clients[key]
	if !ok {
		rl.sweep(now)
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// sweep drops idle clients. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > idleLimiterTTL {
			delete(rl.clients, key)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		utils.LogRateLimitViolation(rl.logger, c.ClientIP(), c.FullPath())
		c.Header("Retry-After", fmt.Sprintf("%.0f", 1/float64(rl.limit)+0.5))
		utils.ErrorResponse(c, http.StatusTooManyRequests, "Rate limit exceeded", nil)
		c.Abort()
	}
}

// RateLimitMiddleware builds the limiter from the security config. It is a
// pass-through when rate limiting is disabled.
func RateLimitMiddleware(cfg *config.SecurityConfig, logger *zap.Logger) gin.HandlerFunc {
	if !cfg.RateLimitEnabled || cfg.RateLimitRequests <= 0 || cfg.RateLimitWindow <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, logger).Middleware()
}
