package repository

import (
	"context"
	"time"

	"PriceCast/internal/domain/models"
)

// MarketData fetches a historical close series for a ticker. Implementations
// wrap every failure, including an empty result, with models.ErrDataUnavailable.
type MarketData interface {
	Fetch(ctx context.Context, ticker string, period Period, interval Interval) (*models.PriceSeries, error)
}

// TextSource returns recent text items (headlines, posts) matching a query.
type TextSource interface {
	Source() models.SentimentSource
	// Configured reports whether the source has the credentials it needs.
	Configured() bool
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Publisher emits completed forecasts to downstream consumers.
type Publisher interface {
	PublishForecast(ctx context.Context, resp *models.ForecastResponse) error
	Close() error
}

// QuotaCounter tracks outbound call budgets per key and window.
type QuotaCounter interface {
	// Take consumes one unit and reports whether the call is still within limit.
	Take(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

type Metrics interface {
	RecordForecast(backend string, seconds float64, points int)
	RecordFallback(ticker, reason string)
	RecordError(kind string)
	RecordSentiment(source string, score float64, available bool)
	RecordLatency(op string, seconds float64)
}
