// Package figcache caches rendered figures in Redis. Concurrent requests for
// the same uncached figure share a single render.
package figcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "figure:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one rendered image.
type Key struct {
	Revision string
	Format   string
	Width    int
	Height   int
}

func (k Key) String() string {
	return fmt.Sprintf("%s%s:%s:%dx%d", keyPrefix, k.Revision, k.Format, k.Width, k.Height)
}

// FigureCache is a read-through cache of rendered images keyed by revision.
type FigureCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.Breaker
	group   singleflight.Group
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a FigureCache. A nil breaker sends every call to the store.
func New(store Store, ttl time.Duration, breaker *resilience.Breaker) *FigureCache {
	return &FigureCache{
		store:   store,
		ttl:     ttl,
		breaker: breaker,
		logger:  slog.Default().With("component", "figure-cache"),
	}
}

func (c *FigureCache) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Do(fn)
}

// Get returns the cached image for key. Store failures count as misses.
func (c *FigureCache) Get(ctx context.Context, key Key) ([]byte, bool) {
	var data string
	found := false
	err := c.guard(func() error {
		v, err := c.store.Get(ctx, key.String())
		if pkgredis.IsNilError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = v, true
		return nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Debug("cache bypassed", "key", key.String(), "error", err)
		} else {
			c.logger.Error("cache get failed", "key", key.String(), "error", err)
		}
	}
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key.String())
	return []byte(data), true
}

// Set stores image under key. Failures are logged, never returned.
func (c *FigureCache) Set(ctx context.Context, key Key, image []byte) {
	err := c.guard(func() error {
		return c.store.Set(ctx, key.String(), image, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key.String(), "error", err)
	}
}

// GetOrRender returns the cached image for key, rendering and storing it on a
// miss. The boolean reports a cache hit.
func (c *FigureCache) GetOrRender(
	ctx context.Context,
	key Key,
	renderFn func() ([]byte, error),
) ([]byte, bool, error) {
	if image, ok := c.Get(ctx, key); ok {
		return image, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		image, err := renderFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, image)
		return image, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]byte), false, nil
}

// Invalidate drops every cached figure and returns how many were removed.
func (c *FigureCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.guard(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating figure cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

// Stats reports hit and miss counts since start.
func (c *FigureCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
