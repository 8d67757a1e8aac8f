package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
)

func TestDecompositionSyntheticHorizon(t *testing.T) {
	series := syntheticSeries(90)
	d := NewDecomposition(DefaultDecompositionOptions())

	res, err := d.Forecast(context.Background(), series, 7)
	require.NoError(t, err)
	require.Len(t, res.Points, 7)
	assert.Equal(t, models.BackendDecomposition, res.Backend)
	assert.Equal(t, models.FreqDaily, res.Frequency)

	prev := series.Last().Timestamp
	for _, p := range res.Points {
		assert.Equal(t, prev.AddDate(0, 0, 1), p.Timestamp)
		prev = p.Timestamp
		require.True(t, p.HasBounds())
		assert.LessOrEqual(t, *p.Lower, p.Estimate)
		assert.LessOrEqual(t, p.Estimate, *p.Upper)
	}
}

func TestDecompositionRecoversLinearTrend(t *testing.T) {
	series := linearSeries(60, 10, 2)
	d := NewDecomposition(DefaultDecompositionOptions())

	res, err := d.Forecast(context.Background(), series, 3)
	require.NoError(t, err)
	for h, p := range res.Points {
		want := 10 + 2*float64(60+h)
		assert.InDelta(t, want, p.Estimate, 1e-3)
		assert.InDelta(t, *p.Upper-*p.Lower, 0, 1e-3)
	}
}

func TestDecompositionBoundsWidenWithHorizon(t *testing.T) {
	series := syntheticSeries(90)
	d := NewDecomposition(DefaultDecompositionOptions())

	res, err := d.Forecast(context.Background(), series, 20)
	require.NoError(t, err)
	first := *res.Points[0].Upper - *res.Points[0].Lower
	last := *res.Points[19].Upper - *res.Points[19].Lower
	assert.Greater(t, last, first)
}

func TestDecompositionFitFailsOnSingleTimestamp(t *testing.T) {
	d := NewDecomposition(DefaultDecompositionOptions())
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	one := &models.PriceSeries{Points: []models.PricePoint{{Timestamp: ts, Close: 10}}}
	_, err := d.Fit(one)
	require.True(t, errors.Is(err, models.ErrFitFailed))

	dup := &models.PriceSeries{Points: []models.PricePoint{{Timestamp: ts, Close: 10}, {Timestamp: ts, Close: 11}}}
	_, err = d.Fit(dup)
	require.True(t, errors.Is(err, models.ErrFitFailed))
}

func TestDecompositionTwoPoints(t *testing.T) {
	d := NewDecomposition(DefaultDecompositionOptions())
	series := linearSeries(2, 100, 1)

	res, err := d.Forecast(context.Background(), series, 2)
	require.NoError(t, err)
	assert.InDelta(t, 102, res.Points[0].Estimate, 1e-6)
	assert.InDelta(t, 103, res.Points[1].Estimate, 1e-6)
}

func TestDecompositionDoesNotMutateInput(t *testing.T) {
	series := syntheticSeries(90)
	before := make([]models.PricePoint, series.Len())
	copy(before, series.Points)

	_, err := NewDecomposition(DefaultDecompositionOptions()).Forecast(context.Background(), series, 5)
	require.NoError(t, err)
	assert.Equal(t, before, series.Points)
}

func TestDecompositionWeeklyFrequency(t *testing.T) {
	series := syntheticSeries(90)
	d := NewDecomposition(DefaultDecompositionOptions())
	m, err := d.Fit(series)
	require.NoError(t, err)

	pts, err := d.Predict(m, 4, models.FreqWeekly)
	require.NoError(t, err)
	require.Len(t, pts, 4)
	assert.Equal(t, series.Last().Timestamp.AddDate(0, 0, 7), pts[0].Timestamp)
	assert.Equal(t, 7*24*time.Hour, pts[3].Timestamp.Sub(pts[2].Timestamp))
}

func TestDecompositionPredictRejectsZeroHorizon(t *testing.T) {
	d := NewDecomposition(DefaultDecompositionOptions())
	m, err := d.Fit(syntheticSeries(30))
	require.NoError(t, err)
	_, err = d.Predict(m, 0, models.FreqDaily)
	require.ErrorIs(t, err, models.ErrInvalidHorizon)
}
