package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is a SendCounter backed by Redis. Each (rule, user) pair
// holds one counter key whose TTL equals the rule's cooldown, so the window
// expires without any sweep. Counting ignores the since parameter; the TTL
// is the window.
type RedisCounter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCounter creates a Redis-backed send counter.
func NewRedisCounter(client redis.UniversalClient) (*RedisCounter, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	return &RedisCounter{client: client, prefix: "trigger:sends"}, nil
}

func (c *RedisCounter) key(triggerSlug, userID string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, triggerSlug, userID)
}

// CountRecent implements SendCounter.
func (c *RedisCounter) CountRecent(ctx context.Context, triggerSlug, userID string, since time.Time) (int, error) {
	count, err := c.client.Get(ctx, c.key(triggerSlug, userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read send counter: %w", err)
	}
	return count, nil
}

// RecordSend implements SendCounter: increments the counter and arms the
// cooldown TTL on first increment.
func (c *RedisCounter) RecordSend(ctx context.Context, triggerSlug, userID string, cooldown time.Duration) error {
	if cooldown <= 0 {
		return nil
	}

	key := c.key(triggerSlug, userID)
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment send counter: %w", err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, cooldown).Err(); err != nil {
			return fmt.Errorf("failed to set send counter ttl: %w", err)
		}
	}
	return nil
}
