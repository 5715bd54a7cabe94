package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shhady/leadform/backend/pkg/logger"
)

// RateLimiter counts requests per key in fixed windows.
type RateLimiter struct {
	mu        sync.Mutex
	counts    map[string]int
	lastReset time.Time
	rate      int           // requests per window
	window    time.Duration // time window
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counts:    make(map[string]int),
		lastReset: time.Now(),
		rate:      rate,
		window:    window,
		now:       time.Now,
	}
}

// Allow records a request for key. When the key is over its budget it returns
// false and how long until the window resets.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastReset) > l.window {
		l.counts = make(map[string]int)
		l.lastReset = now
	}

	if l.counts[key] >= l.rate {
		return false, l.window - now.Sub(l.lastReset)
	}
	l.counts[key]++
	return true, 0
}

// RateLimit limits requests per client IP. A rate of zero or less disables it.
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	if rate <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewRateLimiter(rate, window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		ok, retry := limiter.Allow(clientIP)
		if !ok {
			logger.WithContext(c.Request.Context()).Warn("rate limit exceeded", "client_ip", clientIP)

			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
