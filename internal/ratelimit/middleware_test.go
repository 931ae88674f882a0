package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limiterRouter(t *testing.T, cfg Config) (*gin.Engine, *RateLimiter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rl := fallbackLimiter(cfg)
	r := gin.New()
	r.GET("/ping", rl.IPRateLimitMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/ratelimit/reset", rl.HandleRateLimitReset())
	r.POST("/ratelimit/invalidate/:ip", rl.HandleInvalidateIP())
	return r, rl
}

func ping(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	return w
}

func exhaust(t *testing.T, r *gin.Engine) *httptest.ResponseRecorder {
	t.Helper()
	for i := 0; i < 50; i++ {
		if w := ping(r); w.Code == http.StatusTooManyRequests {
			return w
		}
	}
	t.Fatal("limiter never rejected sustained traffic")
	return nil
}

func TestIPRateLimitMiddlewareRejectsWithStructuredError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IPLimitPerMin = 2
	cfg.BurstMultiplier = 1
	r, _ := limiterRouter(t, cfg)

	w := exhaust(t, r)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "rate_limit", payload["category"])
	assert.Equal(t, float64(http.StatusTooManyRequests), payload["http_status"])
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestResetHandlerRestoresAllowance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IPLimitPerMin = 2
	cfg.BurstMultiplier = 1
	r, _ := limiterRouter(t, cfg)

	exhaust(t, r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ratelimit/reset", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, ping(r).Code)
}

func TestInvalidateIPHandlerRestoresAllowance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IPLimitPerMin = 2
	cfg.BurstMultiplier = 1
	r, _ := limiterRouter(t, cfg)

	exhaust(t, r)

	// httptest requests originate from 192.0.2.1
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ratelimit/invalidate/192.0.2.1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, ping(r).Code)
}
