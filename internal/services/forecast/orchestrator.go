package forecast

import (
	"context"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	domsvc "PriceCast/internal/domain/service"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
)

// historyRequirement is implemented by backends that need a minimum series length.
type historyRequirement interface {
	MinHistory() int
}

// Orchestrator dispatches a series to the selected backend and checks that
// every backend returns the same output shape.
type Orchestrator struct {
	backends map[models.Backend]domsvc.Forecaster
	l        *applogger.Logger
	m        domrepo.Metrics
}

func NewOrchestrator(l *applogger.Logger, m domrepo.Metrics, backends ...domsvc.Forecaster) *Orchestrator {
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	o := &Orchestrator{backends: make(map[models.Backend]domsvc.Forecaster, len(backends)), l: l, m: m}
	for _, b := range backends {
		o.backends[b.Backend()] = b
	}
	return o
}

// Forecast runs backend on series for horizon periods. Bounds are passed
// through as the backend produced them; absent bounds stay nil.
func (o *Orchestrator) Forecast(ctx context.Context, series *models.PriceSeries, horizon int, backend models.Backend) (*models.ForecastResult, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidHorizon, horizon)
	}
	f, ok := o.backends[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownBackend, backend)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if req, ok := f.(historyRequirement); ok && series.Len() < req.MinHistory() {
		return nil, fmt.Errorf("%w: %s needs at least %d points, got %d",
			models.ErrInsufficientHistory, backend, req.MinHistory(), series.Len())
	}

	start := time.Now()
	res, err := f.Forecast(ctx, series, horizon)
	if err != nil {
		o.m.RecordError("forecast_" + string(backend))
		o.l.Error("forecast backend error",
			applogger.String("backend", string(backend)),
			applogger.String("ticker", series.Ticker),
			applogger.Int("points", series.Len()),
			applogger.Error(err),
		)
		return nil, err
	}
	if err := normalize(res, series, horizon, backend); err != nil {
		o.m.RecordError("forecast_shape")
		return nil, err
	}

	elapsed := time.Since(start)
	o.m.RecordForecast(string(backend), elapsed.Seconds(), len(res.Points))
	o.l.Info("forecast ok",
		applogger.String("backend", string(backend)),
		applogger.String("ticker", series.Ticker),
		applogger.Int("history", series.Len()),
		applogger.Int("horizon", horizon),
		applogger.Duration("duration_ms", elapsed),
	)
	return res, nil
}

// normalize stamps identity fields and enforces the shared output contract.
func normalize(res *models.ForecastResult, series *models.PriceSeries, horizon int, backend models.Backend) error {
	if res == nil {
		return fmt.Errorf("backend %s returned no result", backend)
	}
	res.Ticker = series.Ticker
	res.Backend = backend
	if res.Frequency == "" {
		res.Frequency = models.FreqDaily
	}
	if len(res.Points) != horizon {
		return fmt.Errorf("backend %s returned %d points, want %d", backend, len(res.Points), horizon)
	}
	prev := series.Last().Timestamp
	for i, p := range res.Points {
		if !p.Timestamp.After(prev) {
			return fmt.Errorf("backend %s: point %d timestamp %s not after %s", backend, i, p.Timestamp, prev)
		}
		prev = p.Timestamp
		if (p.Lower == nil) != (p.Upper == nil) {
			return fmt.Errorf("backend %s: point %d has a single bound", backend, i)
		}
		if p.HasBounds() && (*p.Lower > p.Estimate || p.Estimate > *p.Upper) {
			return fmt.Errorf("backend %s: point %d bounds [%f, %f] do not contain %f", backend, i, *p.Lower, *p.Upper, p.Estimate)
		}
	}
	return nil
}
