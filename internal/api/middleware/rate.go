package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
)

const (
	// maxTrackedClients bounds the per-IP limiter map. Stale entries are
	// swept once the map fills up.
	maxTrackedClients = 1024
	staleAfter        = 10 * time.Minute
)

// RateLimit creates a per-IP rate limiting middleware.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		tracked, exists := clients[ip]
		if !exists {
			if len(clients) >= maxTrackedClients {
				for addr, cl := range clients {
					if now.Sub(cl.lastSeen) > staleAfter {
						delete(clients, addr)
					}
				}
			}
			tracked = &client{
				limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
			}
			clients[ip] = tracked
		}
		tracked.lastSeen = now
		limiter := tracked.limiter
		mu.Unlock()

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
