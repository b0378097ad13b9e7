package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window request counter backed by Redis INCR +
// EXPIRE. Gate's in-process Limiter is scoped to one server instance;
// RedisLimiter shares the same counter across every replica behind a
// load balancer, which is what a deployment with more than one core
// instance needs for its burst windows to mean anything.
type RedisLimiter struct {
	client      *redis.Client
	keyPrefix   string
	maxRequests int
	window      time.Duration
}

// NewRedisLimiter creates a RedisLimiter. keyPrefix namespaces the
// counter (e.g. "ratelimit:chat:per10s") so multiple windows sharing one
// Redis instance don't collide.
func NewRedisLimiter(client *redis.Client, keyPrefix string, maxRequests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, keyPrefix: keyPrefix, maxRequests: maxRequests, window: window}
}

// Allow increments userID's counter for the current window and reports
// whether this event is within maxRequests. The counter's expiry is set
// only on the first increment of a window, so it rolls forward exactly
// window after the window's first event rather than resetting on every
// call.
func (l *RedisLimiter) Allow(ctx context.Context, userID string, now time.Time) (bool, time.Time, error) {
	key := fmt.Sprintf("%s:%s", l.keyPrefix, userID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, time.Time{}, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, time.Time{}, fmt.Errorf("ratelimit: redis expire: %w", err)
		}
	}

	if count <= int64(l.maxRequests) {
		return true, time.Time{}, nil
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	return false, now.Add(ttl), nil
}

// Reset clears userID's counter, as if the window just opened.
func (l *RedisLimiter) Reset(ctx context.Context, userID string) error {
	key := fmt.Sprintf("%s:%s", l.keyPrefix, userID)
	return l.client.Del(ctx, key).Err()
}
