package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts calls in fixed windows aligned to the wall clock.
// Each window gets its own key which expires when the window closes, so
// counters are shared by every service instance using the same redis.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		prefix: normalizeRedisPrefix(prefix) + ":rate_limit",
		now:    time.Now,
	}
}

// ConsumeRateLimit records one call for scope/subject and returns the number
// of calls seen in the current window, including this one.
func (r *RedisRateLimiter) ConsumeRateLimit(
	ctx context.Context,
	scope string,
	subject string,
	limit int,
	window time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 {
		return 0, 0, nil
	}
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}
	if window < time.Second {
		window = time.Second
	}

	now := r.now()
	windowStart := now.Truncate(window)
	windowEnd := windowStart.Add(window)
	key := r.windowKey(scope, subject, windowStart)

	var incr *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.PExpireAt(ctx, key, windowEnd)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit counter %s: %w", key, err)
	}

	retryAfter := int(math.Ceil(windowEnd.Sub(now).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return int(incr.Val()), retryAfter, nil
}

func (r *RedisRateLimiter) windowKey(scope, subject string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d", r.prefix, scope, subject, windowStart.Unix())
}

func normalizeRedisPrefix(prefix string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		return "chitfund"
	}
	return trimmed
}
