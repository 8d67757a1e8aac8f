package marketdata

import (
	"context"
	"errors"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/pkg/cache"
	applogger "PriceCast/pkg/logger"
)

// Cached memoizes another provider's series for ttl. Failures are not cached.
// A non-positive ttl disables memoization.
type Cached struct {
	next  domrepo.MarketData
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCached(next domrepo.MarketData, c cache.Service, ttl time.Duration, l *applogger.Logger) *Cached {
	if l == nil {
		l = applogger.Nop()
	}
	return &Cached{next: next, cache: c, ttl: ttl, l: l}
}

func (c *Cached) Fetch(ctx context.Context, ticker string, period domrepo.Period, interval domrepo.Interval) (*models.PriceSeries, error) {
	if c.ttl <= 0 {
		return c.next.Fetch(ctx, ticker, period, interval)
	}
	key := cache.GenerateKeyWithParams("series", ticker, period, interval)

	hit, err := cache.GetTyped[models.PriceSeries](ctx, c.cache, key)
	if err == nil && hit.Len() > 0 {
		return &hit, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		c.l.Warn("series cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	series, err := c.next.Fetch(ctx, ticker, period, interval)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, series, c.ttl); err != nil {
		c.l.Warn("series cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return series, nil
}

var _ domrepo.MarketData = (*Cached)(nil)
