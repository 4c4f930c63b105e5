// Package ratelimit throttles the credential endpoints per client address,
// in process or shared through Redis.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/skrskr/recipe-app-api/pkg/recipeapi/metrics"
)

// maxTrackedKeys bounds the in-memory limiter map.
const maxTrackedKeys = 10000

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter keeps a token bucket per key in process memory.
type MemoryLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewMemoryLimiter creates a limiter allowing requestsPerSecond on average
// with bursts of up to burst requests. A burst below one is raised to one.
func NewMemoryLimiter(requestsPerSecond int, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// getLimiter returns the bucket for key, creating it on first use
func (l *MemoryLimiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[key]
	if !exists {
		// Drop all buckets rather than track access times; a reset only
		// grants each client a fresh burst.
		if len(l.limiters) >= maxTrackedKeys {
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}

	return limiter
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	return l.getLimiter(key).Allow(), nil
}

// Middleware rejects requests over the limit with 429. Keys combine the
// route with the client IP. Limiter errors let the request through.
func Middleware(l Limiter, observer metrics.Observer, logger *logrus.Logger) gin.HandlerFunc {
	if observer == nil {
		observer = metrics.Nop{}
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		key := route + "|" + c.ClientIP()

		allowed, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			if logger != nil {
				logger.WithError(err).WithField("route", route).Warn("rate limiter unavailable")
			}
			c.Next()
			return
		}

		if !allowed {
			observer.RateLimited(route)
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"route": route,
					"ip":    c.ClientIP(),
				}).Warn("rate limit exceeded")
			}
			c.Header("Retry-After", strconv.Itoa(1))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}

		c.Next()
	}
}
