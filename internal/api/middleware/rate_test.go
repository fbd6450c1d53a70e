package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
)

func rateRouter(cfg config.RateLimitConfig) *gin.Engine {
	router := gin.New()
	router.Use(RateLimit(cfg))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestRateLimitUnderBurst(t *testing.T) {
	router := rateRouter(config.RateLimitConfig{RequestsPerSecond: 100, Burst: 5})

	for i := 0; i < 5; i++ {
		w := performAs(router, "203.0.113.7:4411", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitOverBurst(t *testing.T) {
	router := rateRouter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})

	for i := 0; i < 2; i++ {
		w := performAs(router, "203.0.113.7:4411", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := performAs(router, "203.0.113.7:4411", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimitTracksClientsSeparately(t *testing.T) {
	router := rateRouter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	w := performAs(router, "203.0.113.7:4411", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = performAs(router, "203.0.113.7:4411", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = performAs(router, "203.0.113.8:4411", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
