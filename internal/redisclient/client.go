package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pos-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
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

	return &Client{rdb: rdb}, nil
}

// Wrap uses an existing go-redis client
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Ping checks Redis reachability
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// RememberOrder maps an idempotency key to the order it created
func (c *Client) RememberOrder(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), orderID, ttl).Err()
}

// LookupOrder returns the order created under an idempotency key, or 0
func (c *Client) LookupOrder(ctx context.Context, key string) (int64, error) {
	val, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt idempotency entry %q: %w", key, err)
	}
	return id, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// GetTable returns a cached table for a QR token; nil on miss
func (c *Client) GetTable(ctx context.Context, token string) (*models.Table, error) {
	data, err := c.rdb.Get(ctx, tableKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t models.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("corrupt table cache entry: %w", err)
	}
	return &t, nil
}

// SetTable caches a table under its QR token
func (c *Client) SetTable(ctx context.Context, t *models.Table, ttl time.Duration) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, tableKey(t.QRToken), data, ttl).Err()
}

// DeleteTable drops cached entries for the given tokens
func (c *Client) DeleteTable(ctx context.Context, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	keys := make([]string, len(tokens))
	for i, tok := range tokens {
		keys[i] = tableKey(tok)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func idempotencyKey(key string) string { return "idempotency:" + key }

func tableKey(token string) string { return "table:token:" + token }
