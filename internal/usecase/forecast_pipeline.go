package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	domsvc "PriceCast/internal/domain/service"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
)

const (
	MaxHorizonDays = 30
	RecentTailSize = 5
)

// SentimentNone disables the sentiment step for a request.
const SentimentNone = "none"

// Orchestrator runs one backend over a series.
type Orchestrator interface {
	Forecast(ctx context.Context, series *models.PriceSeries, horizon int, backend models.Backend) (*models.ForecastResult, error)
}

// SentimentAnalyzer returns an averaged sentiment signal; it never fails.
type SentimentAnalyzer interface {
	AverageSentiment(ctx context.Context, query string, source models.SentimentSource) models.SentimentSignal
}

type PipelineConfig struct {
	Period        domrepo.Period
	Interval      domrepo.Interval
	SyntheticDays int
	// Parallel runs the sentiment lookup alongside the forecast.
	Parallel bool
	// Timeout bounds one Run; zero means no extra deadline.
	Timeout time.Duration
}

// ForecastPipeline is the request-scoped flow: fetch, synthetic fallback,
// forecast, sentiment, publish.
type ForecastPipeline struct {
	cfg  PipelineConfig
	data domrepo.MarketData
	gen  domsvc.SeriesGenerator
	orch Orchestrator
	sent SentimentAnalyzer
	pub  domrepo.Publisher
	l    *applogger.Logger
	m    domrepo.Metrics
}

func NewForecastPipeline(cfg PipelineConfig, data domrepo.MarketData, gen domsvc.SeriesGenerator, orch Orchestrator, sent SentimentAnalyzer, pub domrepo.Publisher, l *applogger.Logger, m domrepo.Metrics) *ForecastPipeline {
	if cfg.Period == "" {
		cfg.Period = domrepo.DefaultPeriod()
	}
	if cfg.Interval == "" {
		cfg.Interval = domrepo.DefaultInterval()
	}
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &ForecastPipeline{cfg: cfg, data: data, gen: gen, orch: orch, sent: sent, pub: pub, l: l, m: m}
}

// Run executes one forecast request. Data provider failures are recovered
// with a synthetic series; forecasting errors are returned unchanged for
// errors.Is classification.
func (p *ForecastPipeline) Run(ctx context.Context, req models.ForecastRequest) (*models.ForecastResponse, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", models.ErrInvalidSeries)
	}
	if req.HorizonDays < 1 || req.HorizonDays > MaxHorizonDays {
		return nil, fmt.Errorf("%w: horizon %d outside [1, %d]", models.ErrInvalidHorizon, req.HorizonDays, MaxHorizonDays)
	}
	backend := models.BackendDecomposition
	if req.Backend != "" {
		b, err := models.ParseBackend(req.Backend)
		if err != nil {
			return nil, err
		}
		backend = b
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	series, err := p.loadSeries(ctx, ticker)
	if err != nil {
		return nil, err
	}

	var (
		wg        sync.WaitGroup
		sentiment *models.SentimentSignal
	)
	runSentiment := func() {
		if p.sent == nil || strings.EqualFold(req.Sentiment, SentimentNone) {
			return
		}
		source := models.SentimentSource(strings.ToLower(req.Sentiment))
		if source == "" {
			source = models.SentimentNews
		}
		sig := p.sent.AverageSentiment(ctx, ticker, source)
		sentiment = &sig
	}
	if p.cfg.Parallel {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSentiment()
		}()
	}

	result, err := p.orch.Forecast(ctx, series, req.HorizonDays, backend)
	if err != nil {
		wg.Wait()
		return nil, fmt.Errorf("forecast %s with %s: %w", ticker, backend, err)
	}

	if p.cfg.Parallel {
		wg.Wait()
	} else {
		runSentiment()
	}

	resp := &models.ForecastResponse{
		RequestID:  req.RequestID,
		Ticker:     ticker,
		DataSource: series.Source,
		RecentTail: series.Tail(RecentTailSize),
		Forecast:   result,
		Sentiment:  sentiment,
	}

	if p.pub != nil {
		if err := p.pub.PublishForecast(ctx, resp); err != nil {
			p.m.RecordError("publish")
			p.l.Warn("forecast publish failed",
				applogger.String("request_id", req.RequestID),
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
		}
	}

	p.m.RecordLatency("pipeline", time.Since(start).Seconds())
	p.l.Info("forecast pipeline done",
		applogger.String("request_id", req.RequestID),
		applogger.String("ticker", ticker),
		applogger.String("backend", string(backend)),
		applogger.String("data_source", string(series.Source)),
		applogger.Int("horizon", req.HorizonDays),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return resp, nil
}

// loadSeries fetches live data and substitutes a synthetic series on any
// provider failure, empty result or malformed series.
func (p *ForecastPipeline) loadSeries(ctx context.Context, ticker string) (*models.PriceSeries, error) {
	var reason error
	if p.data != nil {
		fetchStart := time.Now()
		series, err := p.data.Fetch(ctx, ticker, p.cfg.Period, p.cfg.Interval)
		p.m.RecordLatency("market_data", time.Since(fetchStart).Seconds())
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			reason = err
		case series.Len() == 0:
			reason = fmt.Errorf("%w: empty series", models.ErrDataUnavailable)
		default:
			if verr := series.Validate(); verr != nil {
				reason = fmt.Errorf("%w: %v", models.ErrDataUnavailable, verr)
			} else {
				series.Source = models.SourceLive
				return series, nil
			}
		}
	} else {
		reason = fmt.Errorf("%w: no provider configured", models.ErrDataUnavailable)
	}

	kind := "unavailable"
	if !errors.Is(reason, models.ErrDataUnavailable) {
		kind = "error"
	}
	p.m.RecordFallback(ticker, kind)
	p.l.Warn("market data unavailable, using synthetic series",
		applogger.String("ticker", ticker),
		applogger.Int("days", p.cfg.SyntheticDays),
		applogger.Error(reason),
	)

	if p.gen == nil {
		return nil, models.ErrNoDataAvailable
	}
	synth := p.gen.Generate(p.cfg.SyntheticDays)
	if synth.Len() == 0 {
		return nil, models.ErrNoDataAvailable
	}
	out := &models.PriceSeries{Ticker: ticker, Source: models.SourceSynthetic, Points: synth.Points}
	return out, nil
}
