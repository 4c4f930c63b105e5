package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// windowScript increments the counter for the current window and starts
// the window on the first hit.
var windowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[1]))
end
return current`)

// RedisLimiter is a fixed-window counter shared by every server instance.
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewRedisLimiter allows burst requests per window, where the window is
// sized so the long-run average matches requestsPerSecond.
func NewRedisLimiter(client *redis.Client, keyPrefix string, requestsPerSecond, burst int) *RedisLimiter {
	limit, window := windowFor(requestsPerSecond, burst)
	return &RedisLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}
}

func windowFor(requestsPerSecond, burst int) (int, time.Duration) {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burst < requestsPerSecond {
		burst = requestsPerSecond
	}
	window := time.Duration(burst) * time.Second / time.Duration(requestsPerSecond)
	return burst, window
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	result, err := windowScript.Run(ctx, l.client, []string{l.keyPrefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return result <= int64(l.limit), nil
}
