package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/rate_limit.lua
var rateLimitScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb           *redis.Client
	rateScript    *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		rateScript:    redis.NewScript(rateLimitScript),
		releaseScript: redis.NewScript(releaseLockScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Allow counts one request against key in a fixed window. It reports whether
// the request is within limit and how long until the window resets.
func (c *Client) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	result, err := c.rateScript.Run(ctx, c.rdb,
		[]string{fmt.Sprintf("ratelimit:%s", key)}, limit, window.Milliseconds()).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, fmt.Errorf("unexpected script result type")
	}
	allowed, _ := values[0].(int64)
	ttl, _ := values[2].(int64)

	return allowed == 1, time.Duration(ttl) * time.Millisecond, nil
}

// AcquireLock acquires a distributed lock. The returned token is needed to
// release it; an empty token means the lock is held by someone else.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock releases a distributed lock if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
