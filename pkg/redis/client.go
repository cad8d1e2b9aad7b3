// Package redis wraps go-redis/v9 for the two things the explorer keeps in
// Redis: rendered figures and shared session state. Values are opaque
// strings; callers own their key namespaces.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Nil is the error Get returns for an absent key.
const Nil = redis.Nil

// ErrConflict is returned by Update when other writers kept changing the key
// through every attempt.
var ErrConflict = errors.New("redis: key changed during update")

// updateAttempts bounds the optimistic retries in Update.
const updateAttempts = 3

// scanBatch is the SCAN COUNT hint and the number of keys unlinked per
// round trip when flushing.
const scanBatch = 200

// Client is a pooled connection to one Redis database.
type Client struct {
	rdb *redis.Client
}

// NewClient connects using cfg and fails unless Redis answers a PING within
// dialTimeout.
func NewClient(ctx context.Context, cfg config.RedisConfig, dialTimeout time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: dialTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the value at key, or an error matching Nil when it is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set stores value at key. A zero ttl keeps it until deleted.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// Update rewrites the value at key with fn under WATCH, so the write is
// dropped and retried if another client touches the key first. fn may run
// more than once. An absent key returns an error matching Nil without
// calling fn; an error from fn aborts the update and is returned as is.
func (c *Client) Update(ctx context.Context, key string, ttl time.Duration, fn func(current string) (string, error)) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}
	for attempt := 0; attempt < updateAttempts; attempt++ {
		err := c.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("updating %s: %w", key, ErrConflict)
}

// FlushByPattern unlinks every key matching the glob pattern, one scan page
// per round trip, and returns how many were removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("scanning %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Unlink(ctx, keys...).Result()
			deleted += n
			if err != nil {
				return deleted, fmt.Errorf("unlinking %d keys: %w", len(keys), err)
			}
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// IsNilError reports whether err means the key did not exist.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
