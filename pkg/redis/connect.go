package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens a Redis client from the config, retrying with linear
// backoff until the server answers PING or the attempts run out.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConnString, err)
	}
	opts.DialTimeout = cfg.ConnectTimeout

	client := redis.NewClient(opts)

	var lastErr error
	for i := range cfg.RetryAttempts {
		if err := client.Ping(ctx).Err(); err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * cfg.RetryInterval)
			continue
		}
		return client, nil
	}

	_ = client.Close()
	return nil, errors.Join(ErrRedisNotReady, lastErr)
}

// Healthcheck adapts the client to the func(context.Context) error shape
// health endpoints expect.
func Healthcheck(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
