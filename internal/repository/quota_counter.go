package repository

import (
	"context"
	"fmt"
	"time"

	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/pkg/cache"
)

// CacheQuotaCounter counts calls per key in a fixed window on a cache
// counter: the first increment in a window sets the expiry.
type CacheQuotaCounter struct {
	c cache.Service
}

func NewCacheQuotaCounter(c cache.Service) *CacheQuotaCounter {
	return &CacheQuotaCounter{c: c}
}

func (q *CacheQuotaCounter) Take(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	key = cache.GenerateKey("quota", key)
	n, err := q.c.Increment(ctx, key)
	if err != nil {
		return false, fmt.Errorf("quota increment: %w", err)
	}
	if n == 1 {
		if _, err := q.c.Expire(ctx, key, window); err != nil {
			return true, fmt.Errorf("quota expire: %w", err)
		}
	}
	return n <= limit, nil
}

var _ domrepo.QuotaCounter = (*CacheQuotaCounter)(nil)
