package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(closes ...float64) *PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]PricePoint, len(closes))
	for i, c := range closes {
		pts[i] = PricePoint{Timestamp: start.AddDate(0, 0, i), Close: c}
	}
	return &PriceSeries{Ticker: "X", Points: pts}
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{
		"decomposition": BackendDecomposition,
		"Prophet":       BackendDecomposition,
		"sequence":      BackendSequence,
		" lstm ":        BackendSequence,
	} {
		got, err := ParseBackend(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseBackend("arima")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestSentimentLabel(t *testing.T) {
	assert.Equal(t, LabelPositive, SentimentLabel(0.21))
	assert.Equal(t, LabelNeutral, SentimentLabel(0.2))
	assert.Equal(t, LabelNeutral, SentimentLabel(-0.2))
	assert.Equal(t, LabelNegative, SentimentLabel(-0.5))
}

func TestSeriesValidate(t *testing.T) {
	require.NoError(t, series(1, 2, 3).Validate())
	assert.ErrorIs(t, (&PriceSeries{}).Validate(), ErrInvalidSeries)
	assert.ErrorIs(t, series(1, math.NaN()).Validate(), ErrInvalidSeries)

	s := series(1, 2)
	s.Points[1].Timestamp = s.Points[0].Timestamp
	assert.ErrorIs(t, s.Validate(), ErrInvalidSeries)
}

func TestSeriesTailCopies(t *testing.T) {
	s := series(1, 2, 3, 4, 5, 6)
	tail := s.Tail(5)
	require.Len(t, tail, 5)
	assert.Equal(t, 2.0, tail[0].Close)
	tail[0].Close = 100
	assert.Equal(t, 2.0, s.Points[1].Close)

	assert.Len(t, series(1, 2).Tail(5), 2)
}

func TestForecastPointJSONOmitsAbsentBounds(t *testing.T) {
	b, err := json.Marshal(ForecastPoint{Timestamp: time.Unix(0, 0).UTC(), Estimate: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "lower")

	b, err = json.Marshal(ForecastPoint{Timestamp: time.Unix(0, 0).UTC(), Estimate: 1, Lower: Float(0.5), Upper: Float(2)})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"lower":0.5`)
}

func TestFrequencyAdvance(t *testing.T) {
	ts := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), FreqDaily.Advance(ts, 1))
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), FreqWeekly.Advance(ts, 2))
	assert.Equal(t, ts.Add(3*time.Hour), FreqHourly.Advance(ts, 3))

	f, err := ParseFrequency("")
	require.NoError(t, err)
	assert.Equal(t, FreqDaily, f)
	_, err = ParseFrequency("M")
	assert.Error(t, err)
}
