package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zscore-fintech/zscore-engine/internal/monitoring"
)

func TestCacheSetGetExpiry(t *testing.T) {
	c := NewCache(30 * time.Millisecond)
	c.Set("k", []byte("v"))

	data, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), data)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	require.Equal(t, 2, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestMiddlewareServesIdenticalRequestsFromCache(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	calls := 0

	r := gin.New()
	r.Use(c.Middleware("/assess", monitoring.NewMetrics(), func() string { return "v1" }))
	r.POST("/assess", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	first := postAssess(r)
	second := postAssess(r)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestMiddlewareVersionChangeBypassesStaleEntries(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	version := "model-1:0"
	calls := 0

	r := gin.New()
	r.Use(c.Middleware("/assess", monitoring.NewMetrics(), func() string { return version }))
	r.POST("/assess", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	postAssess(r)
	postAssess(r)
	require.Equal(t, 1, calls, "same version shares the cached response")

	// A gamification event or retrain bumps the version; the same body must
	// reach the handler again
	version = "model-1:1"
	w := postAssess(r)
	assert.Equal(t, 2, calls)
	assert.Contains(t, w.Body.String(), `"calls":2`)
}

func TestMiddlewareIgnoresOtherPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	calls := 0

	r := gin.New()
	r.Use(c.Middleware("/assess", monitoring.NewMetrics(), func() string { return "v1" }))
	r.POST("/other", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/other", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
	}
	assert.Equal(t, 2, calls)
}

func postAssess(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/assess", strings.NewReader(`{"applicant_id":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}
