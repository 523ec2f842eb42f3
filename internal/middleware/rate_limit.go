package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// PaymentRateLimit caps how many charge attempts a session may start per
// window. In-memory, per process; the idempotency machinery downstream is
// what actually protects against duplicates, this just dampens hammering.
func PaymentRateLimit(maxAttempts int, window time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	attempts := make(map[string][]time.Time)

	return func(c *gin.Context) {
		key := c.GetString("session_id")
		if key == "" {
			key = c.ClientIP()
		}

		now := time.Now()
		cutoff := now.Add(-window)

		mu.Lock()
		recent := attempts[key][:0]
		for _, t := range attempts[key] {
			if t.After(cutoff) {
				recent = append(recent, t)
			}
		}
		if len(recent) >= maxAttempts {
			attempts[key] = recent
			mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many payment attempts",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}
		attempts[key] = append(recent, now)
		mu.Unlock()

		c.Next()
	}
}
