package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache implements Service on an in-process go-cache store. Values
// are held encoded so Get behaves the same as the Redis implementation.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		DefaultExpiration: 10 * time.Minute,
		CleanupInterval:   5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache{c: gocache.New(cfg.DefaultExpiration, cfg.CleanupInterval)}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}
	mc.c.Set(key, data, expiration)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	v, ok := mc.c.Get(key)
	if !ok {
		return ErrCacheMiss
	}
	switch val := v.(type) {
	case []byte:
		return decode(val, dest)
	default:
		data, err := encode(val)
		if err != nil {
			return err
		}
		return decode(data, dest)
	}
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		mc.c.Delete(key)
	}
	return nil
}

// Increment adds one to an int64 counter, creating it at 1 when absent.
func (mc *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if n, err := mc.c.IncrementInt64(key, 1); err == nil {
			return n, nil
		}
		if err := mc.c.Add(key, int64(1), gocache.DefaultExpiration); err == nil {
			return 1, nil
		}
	}
	return 0, fmt.Errorf("cache: increment %q: value is not a counter", key)
}

func (mc *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	v, _, ok := mc.c.GetWithExpiration(key)
	if !ok {
		return false, nil
	}
	mc.c.Set(key, v, expiration)
	return true, nil
}

// Close drops all items.
func (mc *MemoryCache) Close() error {
	mc.c.Flush()
	return nil
}

var _ Service = (*MemoryCache)(nil)
