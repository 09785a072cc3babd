package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by the JSON helpers when a key is absent.
var ErrMiss = errors.New("cache miss")

// Client wraps a redis connection with the helpers the services use.
type Client struct {
	Redis *redis.Client
	log   logger.Logger
}

// NewClient parses redisURL, connects and pings.
func NewClient(redisURL string, log logger.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed connecting to redis: %w", err)
	}

	log = logger.OrNop(log)
	log.Info("redis connected", "addr", opts.Addr)

	return &Client{Redis: client, log: log}, nil
}

// New wraps an existing redis client.
func New(r *redis.Client, log logger.Logger) *Client {
	return &Client{Redis: r, log: logger.OrNop(log)}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.Redis.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.Redis.Ping(ctx).Err()
}

// Set sets a key-value pair with expiration
func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return c.Redis.Set(ctx, key, value, expiration).Err()
}

// Get gets a value by key
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.Redis.Get(ctx, key).Result()
}

// Delete deletes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.Redis.Del(ctx, keys...).Err()
}

// Exists checks if a key exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.Redis.Exists(ctx, key).Result()
	return count > 0, err
}

// DeletePattern deletes all keys matching a pattern using SCAN.
func (c *Client) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.Redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.Redis.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.log.Debug("cache keys invalidated", "pattern", pattern, "count", deleted)
	return deleted, nil
}

// SetJSON stores value encoded as JSON.
func (c *Client) SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return c.Set(ctx, key, data, expiration)
}

// GetJSON decodes the value at key into dst. It returns ErrMiss when absent.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) error {
	data, err := c.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode cache value: %w", err)
	}
	return nil
}

// Remember returns the cached value at key, or calls load, stores its result
// and returns it. Redis failures fall through to load.
func Remember[T any](ctx context.Context, c *Client, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c == nil {
		return load(ctx)
	}
	err := c.GetJSON(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrMiss) {
		c.log.Warn("cache read failed", "key", key, "error", err)
	}

	fresh, err := load(ctx)
	if err != nil {
		return fresh, err
	}
	if err := c.SetJSON(ctx, key, fresh, ttl); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
	return fresh, nil
}

// TTL returns the time-to-live for a key
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.Redis.TTL(ctx, key).Result()
}

// Incr increments a counter, setting its expiry when it is created.
func (c *Client) Incr(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	n, err := c.Redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	if n == 1 {
		if err := c.Redis.Expire(ctx, key, expiration).Err(); err != nil {
			return n, fmt.Errorf("failed to set expiry on %s: %w", key, err)
		}
	}
	return n, nil
}
