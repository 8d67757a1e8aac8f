package sentiment

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	domsvc "PriceCast/internal/domain/service"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
)

const DefaultMaxItems = 10

// Config controls item limits and the per-source daily call budget.
type Config struct {
	MaxItems   int
	DailyQuota int64 // 0 disables the quota check
	Timeout    time.Duration
}

// Aggregator averages item polarities from one text source. It never
// returns an error: every failure degrades to a neutral, unavailable signal.
type Aggregator struct {
	cfg     Config
	sources map[models.SentimentSource]domrepo.TextSource
	scorer  domsvc.PolarityScorer
	quota   domrepo.QuotaCounter
	l       *applogger.Logger
	m       domrepo.Metrics
}

func NewAggregator(cfg Config, scorer domsvc.PolarityScorer, quota domrepo.QuotaCounter, l *applogger.Logger, m domrepo.Metrics, sources ...domrepo.TextSource) *Aggregator {
	if cfg.MaxItems <= 0 || cfg.MaxItems > DefaultMaxItems {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if scorer == nil {
		scorer = NewLexicon(nil)
	}
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	a := &Aggregator{
		cfg:     cfg,
		sources: make(map[models.SentimentSource]domrepo.TextSource, len(sources)),
		scorer:  scorer,
		quota:   quota,
		l:       l,
		m:       m,
	}
	for _, s := range sources {
		if s != nil {
			a.sources[s.Source()] = s
		}
	}
	return a
}

// AverageSentiment scores up to MaxItems recent items matching query.
func (a *Aggregator) AverageSentiment(ctx context.Context, query string, source models.SentimentSource) models.SentimentSignal {
	sig := a.average(ctx, query, source)
	sig.Label = models.SentimentLabel(sig.Score)
	a.m.RecordSentiment(string(source), sig.Score, sig.Available)
	return sig
}

func (a *Aggregator) average(ctx context.Context, query string, source models.SentimentSource) models.SentimentSignal {
	neutral := models.NeutralSentiment(source)

	src, ok := a.sources[source]
	if !ok || !src.Configured() {
		a.l.Debug("sentiment source not configured", applogger.String("source", string(source)))
		return neutral
	}

	if a.quota != nil && a.cfg.DailyQuota > 0 {
		key := "sentiment:" + string(source) + ":" + time.Now().UTC().Format(time.DateOnly)
		allowed, err := a.quota.Take(ctx, key, a.cfg.DailyQuota, 24*time.Hour)
		if err != nil {
			a.l.Warn("sentiment quota check failed", applogger.String("source", string(source)), applogger.Error(err))
		} else if !allowed {
			a.l.Warn("sentiment daily quota exhausted",
				applogger.String("source", string(source)),
				applogger.Int64("quota", a.cfg.DailyQuota),
			)
			return neutral
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	start := time.Now()
	items, err := src.Search(ctx, query, a.cfg.MaxItems)
	a.m.RecordLatency("sentiment_"+string(source), time.Since(start).Seconds())
	if err != nil {
		a.m.RecordError("sentiment_" + string(source))
		a.l.Warn("sentiment source error",
			applogger.String("source", string(source)),
			applogger.String("query", query),
			applogger.Error(err),
		)
		return neutral
	}
	if len(items) > a.cfg.MaxItems {
		items = items[:a.cfg.MaxItems]
	}
	if len(items) == 0 {
		return neutral
	}

	scores := make([]float64, len(items))
	for i, text := range items {
		scores[i] = a.scorer.Polarity(text)
	}
	return models.SentimentSignal{
		Score:     Mean(scores),
		Available: true,
		Items:     len(scores),
		Source:    source,
	}
}

// Mean returns the arithmetic mean, or 0 for no scores.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}
