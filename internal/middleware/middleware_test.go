package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"ecf-service/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, zaptest.NewLogger(t))
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.Allow("10.0.0.2"), "other clients keep their own bucket")

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "one token refilled after half the window")
	assert.False(t, rl.Allow("10.0.0.1"))

	now = now.Add(idleLimiterTTL + time.Second)
	rl.Allow("10.0.0.3")
	assert.Len(t, rl.clients, 1, "idle clients are swept")
}

func TestRateLimitMiddlewareRejectsWith429(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := &config.SecurityConfig{RateLimitEnabled: true, RateLimitRequests: 1, RateLimitWindow: time.Hour}

	r := gin.New()
	r.Use(RequestIDMiddleware(), RateLimitMiddleware(cfg, zap.New(core)))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, 1, logs.FilterMessage("Rate limit violation").Len())
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(&config.SecurityConfig{}, zaptest.NewLogger(t)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "caixa-01-42")
	r.ServeHTTP(w, req)
	assert.Equal(t, "caixa-01-42", w.Body.String())
	assert.Equal(t, "caixa-01-42", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := gin.New()
	r.Use(RequestIDMiddleware(), RecoveryMiddleware(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { panic("printer on fire") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}
