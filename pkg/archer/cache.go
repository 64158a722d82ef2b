package archer

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// TTLCache is an in-memory expiring cache whose fills are de-duplicated per key.
type TTLCache struct {
	items *gocache.Cache
	group singleflight.Group
}

// NewTTLCache creates a cache; expired items are purged every cleanupInterval.
func NewTTLCache(defaultTTL, cleanupInterval time.Duration) *TTLCache {
	return &TTLCache{items: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *TTLCache) Get(key string) (interface{}, bool) {
	return c.items.Get(key)
}

func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	c.items.Set(key, value, ttl)
}

func (c *TTLCache) Delete(key string) {
	c.items.Delete(key)
}

func (c *TTLCache) Flush() {
	c.items.Flush()
}

// getOrPopulate returns the cached value for key, or runs populate once for all
// concurrent callers and stores its result for ttl. Errors are not cached.
// The fill is detached from the caller that started it: a caller whose ctx is
// done stops waiting without failing the others.
func getOrPopulate[T any](ctx context.Context, c *TTLCache, key string, ttl time.Duration, populate func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.items.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	fillCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if v, ok := c.items.Get(key); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
		fresh, err := populate(fillCtx)
		if err != nil {
			return nil, err
		}
		c.items.Set(key, fresh, ttl)
		return fresh, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
