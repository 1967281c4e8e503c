package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
)

func rateLimitedRequest(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_PerIP(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(config.RateLimitConfig{PerSecond: 0.001, Burst: 2}))
	router.GET("/plans", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })

	assert.Equal(t, http.StatusOK, rateLimitedRequest(router, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, rateLimitedRequest(router, "10.0.0.1").Code)

	w := rateLimitedRequest(router, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, response.CodeTooManyRequests, parseResponse(t, w).Code)

	// 其他 IP 不受影响
	assert.Equal(t, http.StatusOK, rateLimitedRequest(router, "10.0.0.2").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(config.RateLimitConfig{}))
	router.GET("/plans", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, rateLimitedRequest(router, "10.0.0.1").Code)
	}
}

func TestIPLimiter_SweepsIdleBuckets(t *testing.T) {
	l := newIPLimiter(1, 1)
	now := time.Now()
	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now))

	later := now.Add(limiterTTL + 2*time.Minute)
	assert.True(t, l.allow("b", later))
	_, ok := l.buckets["a"]
	assert.False(t, ok)
}
