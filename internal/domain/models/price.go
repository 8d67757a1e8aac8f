package models

import (
	"fmt"
	"math"
	"time"
)

// SeriesSource tells whether a series came from a provider or the generator.
type SeriesSource string

const (
	SourceLive      SeriesSource = "live"
	SourceSynthetic SeriesSource = "synthetic"
)

// PricePoint is one observation: a timestamp and the closing price.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
}

// PriceSeries is an ordered, immutable sequence of price points for a ticker.
// Backends read it through Closes/Tail which return copies.
type PriceSeries struct {
	Ticker string       `json:"ticker"`
	Source SeriesSource `json:"source"`
	Points []PricePoint `json:"points"`
}

func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Closes returns a copy of the closing prices in order.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, s.Len())
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Timestamps returns a copy of the point timestamps in order.
func (s *PriceSeries) Timestamps() []time.Time {
	out := make([]time.Time, s.Len())
	for i, p := range s.Points {
		out[i] = p.Timestamp
	}
	return out
}

// Last returns the most recent point. The series must not be empty.
func (s *PriceSeries) Last() PricePoint {
	return s.Points[len(s.Points)-1]
}

// Tail returns a copy of the last n points (fewer if the series is shorter).
func (s *PriceSeries) Tail(n int) []PricePoint {
	l := s.Len()
	if n > l {
		n = l
	}
	if n <= 0 {
		return []PricePoint{}
	}
	out := make([]PricePoint, n)
	copy(out, s.Points[l-n:])
	return out
}

// DistinctTimestamps counts unique timestamps.
func (s *PriceSeries) DistinctTimestamps() int {
	seen := make(map[int64]struct{}, s.Len())
	for _, p := range s.Points {
		seen[p.Timestamp.UnixNano()] = struct{}{}
	}
	return len(seen)
}

// Validate checks ordering and value invariants: strictly increasing
// timestamps and finite closes.
func (s *PriceSeries) Validate() error {
	if s.Len() == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidSeries)
	}
	for i, p := range s.Points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return fmt.Errorf("%w: non-finite close at %s", ErrInvalidSeries, p.Timestamp.Format(time.DateOnly))
		}
		if i > 0 && !p.Timestamp.After(s.Points[i-1].Timestamp) {
			return fmt.Errorf("%w: timestamps not strictly increasing at index %d", ErrInvalidSeries, i)
		}
	}
	return nil
}
