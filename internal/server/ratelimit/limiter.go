// Package ratelimit implements a fixed-window request limiter on Redis, so
// the limit holds across server instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

type Limiter struct {
	client redis.Cmdable
	logger logging.Logger
}

func NewLimiter(client redis.Cmdable, logger logging.Logger) *Limiter {
	return &Limiter{client: client, logger: logger.With("module", "rate_limiter")}
}

// Allow counts one hit for key and reports whether it is within limit for
// the current window. The window starts with the first hit and the counter
// expires with it.
//
// When Redis is unavailable the request is allowed and the error returned,
// so an outage of the limiter never takes the API down with it.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := keyPrefix + key

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		l.logger.Error(ctx, "rate limit check failed", "key", key, "error", err)
		return true, fmt.Errorf("redis error: %w", err)
	}

	count := incr.Val()
	if count > int64(limit) {
		l.logger.Warn(ctx, "rate limit exceeded", "key", key, "count", count, "limit", limit)
		return false, nil
	}
	return true, nil
}
