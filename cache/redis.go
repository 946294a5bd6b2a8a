package cache

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// DialTimeout bounds connection establishment. Default: 800ms
	DialTimeout time.Duration

	// OpTimeout bounds individual read/write commands. Default: 800ms
	OpTimeout time.Duration
}

// Redis is a cache backed by a Redis server.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis cache. It does not ping the server: the
// circuit-breaking adapter discovers availability on first use.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("cache: redis address is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 800 * time.Millisecond
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 800 * time.Millisecond
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})

	return &Redis{client: client}, nil
}

// Get retrieves a cached value. Returns (nil, false, nil) on miss.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores a value with the given TTL.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// SetNX stores the value only if the key is absent.
func (c *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

// Delete removes a cached value. Idempotent - no error on miss.
func (c *Redis) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Incr atomically increments the counter at key. INCR and EXPIRE run in
// one transaction so the window expiry is set with the first increment.
func (c *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	counter := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return counter.Val(), nil
}

// Ping checks that the server is reachable.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *Redis) Close() error {
	return c.client.Close()
}

// Ensure Redis implements Cache
var _ Cache = (*Redis)(nil)
