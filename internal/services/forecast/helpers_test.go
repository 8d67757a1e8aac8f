package forecast

import (
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/synthetic"
)

var testClock = func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) }

func syntheticSeries(days int) *models.PriceSeries {
	s := synthetic.New(synthetic.WithSeed(42), synthetic.WithClock(testClock), synthetic.WithTicker("TEST")).Generate(days)
	return s
}

func linearSeries(days int, intercept, slope float64) *models.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]models.PricePoint, days)
	for i := range pts {
		pts[i] = models.PricePoint{Timestamp: start.AddDate(0, 0, i), Close: intercept + slope*float64(i)}
	}
	return &models.PriceSeries{Ticker: "LIN", Source: models.SourceLive, Points: pts}
}

func constantSeries(days int, v float64) *models.PriceSeries {
	s := linearSeries(days, v, 0)
	s.Ticker = "FLAT"
	return s
}
