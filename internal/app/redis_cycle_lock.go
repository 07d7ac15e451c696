package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deletes the lock only while it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCycleLock is a SET NX PX lock guarding the weekly cycle.
type RedisCycleLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCycleLock(client redis.UniversalClient, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCycleLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCycleLock{
		client: client,
		key:    normalizeRedisPrefix(prefix) + ":lock:weekly_cycle",
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire tries to take the lock once. The returned release func is safe to
// call after the lock has expired.
func (l *RedisCycleLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseLockScript.Run(releaseCtx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("failed to release weekly cycle lock", "key", l.key, "error", err)
		}
	}
	return release, true, nil
}
