package service

import (
	"context"

	"PriceCast/internal/domain/models"
)

// Forecaster is a forecasting backend. Implementations return exactly horizon
// points starting one period after the last input point, and never modify
// the input series.
type Forecaster interface {
	Backend() models.Backend
	Forecast(ctx context.Context, series *models.PriceSeries, horizon int) (*models.ForecastResult, error)
}

// PolarityScorer scores a text item in [-1, 1].
type PolarityScorer interface {
	Polarity(text string) float64
}

// SeriesGenerator produces a substitute series when live data is unavailable.
type SeriesGenerator interface {
	Generate(days int) *models.PriceSeries
}
