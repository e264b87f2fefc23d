package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

// fixedWindow increments the counter and starts the window on the first hit.
// Returns {count, remaining window in ms}.
var fixedWindow = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter shares buckets across instances; the script keeps read-increment atomic
type RedisLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
	prefix      string
}

// NewRedisLimiter allows maxAttempts per window for each key
func NewRedisLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		prefix:      "signon:ratelimit:",
	}
}

var _ ports.RateLimiter = (*RedisLimiter)(nil)

// Check counts one attempt for clientKey
func (l *RedisLimiter) Check(ctx context.Context, clientKey string) error {
	res, err := fixedWindow.Run(ctx, l.client, []string{l.prefix + clientKey}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return fmt.Errorf("rate limit check failed: unexpected reply %v", res)
	}

	if res[0] > int64(l.maxAttempts) {
		return &core.RateLimitError{RetryAfter: time.Duration(res[1]) * time.Millisecond}
	}
	return nil
}
