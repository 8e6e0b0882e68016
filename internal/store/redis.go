package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DispatchLimiter caps completion-service calls per conversation within a
// rolling window, backed by Redis. Optional: when Redis is not configured
// the aggregator dispatches unconditionally.
type DispatchLimiter struct {
	client *redis.Client
}

// NewDispatchLimiter creates a limiter connected to the given Redis URL.
func NewDispatchLimiter(ctx context.Context, redisURL string) (*DispatchLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &DispatchLimiter{client: client}, nil
}

// Close closes the Redis connection.
func (l *DispatchLimiter) Close() error {
	return l.client.Close()
}

// Ping checks the Redis connection.
func (l *DispatchLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// dispatchKey returns the key for a conversation's dispatch counter.
func dispatchKey(conversationID string) string {
	return fmt.Sprintf("dispatch:%s", conversationID)
}

// Allow reports whether another dispatch is permitted for the
// conversation and, if so, counts it against the window.
func (l *DispatchLimiter) Allow(ctx context.Context, conversationID string, limit int, window time.Duration) (bool, error) {
	key := dispatchKey(conversationID)

	count, err := l.client.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return false, err
	}
	if count >= limit {
		return false, nil
	}

	pipe := l.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}
