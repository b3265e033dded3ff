package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"copydesk/internal/config"
	"copydesk/internal/storage"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis client to centralize configuration.
type Client struct {
	inner *redis.Client
	ttl   time.Duration
}

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

const keyPrefix = "copydesk"

// NewRedisClient creates the redis client from app config.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client, ttl: time.Duration(cfg.BasicConfig.StoreTTL) * time.Hour}, nil
}

// Wrap adopts an existing go-redis client; ttl applies to scoped values.
func Wrap(inner *redis.Client, ttl time.Duration) *Client {
	return &Client{inner: inner, ttl: ttl}
}

func scopedKey(scope, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, scope, key)
}

// Get implements storage.KV.
func (c *Client) Get(ctx context.Context, scope, key string) (string, error) {
	if c == nil || c.inner == nil {
		return "", errors.New("redis client not initialized")
	}
	v, err := c.inner.Get(ctx, scopedKey(scope, key)).Result()
	if errors.Is(err, ErrCacheMiss) {
		return "", storage.ErrNotFound
	}
	return v, err
}

// Set implements storage.KV; values expire after the configured TTL.
func (c *Client) Set(ctx context.Context, scope, key, value string) error {
	if c == nil || c.inner == nil {
		return errors.New("redis client not initialized")
	}
	return c.inner.Set(ctx, scopedKey(scope, key), value, c.ttl).Err()
}

// Delete implements storage.KV.
func (c *Client) Delete(ctx context.Context, scope string, keys ...string) error {
	if c == nil || c.inner == nil {
		return errors.New("redis client not initialized")
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, scopedKey(scope, k))
	}
	return c.inner.Del(ctx, full...).Err()
}

// TTL returns the remaining lifetime of a scoped key.
func (c *Client) TTL(ctx context.Context, scope, key string) (time.Duration, error) {
	if c == nil || c.inner == nil {
		return 0, errors.New("redis client not initialized")
	}
	return c.inner.TTL(ctx, scopedKey(scope, key)).Result()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// Raw exposes underlying go-redis client.
func (c *Client) Raw() *redis.Client {
	if c == nil {
		return nil
	}
	return c.inner
}
