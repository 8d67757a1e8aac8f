package models

import (
	"fmt"
	"strings"
	"time"
)

// Backend names a forecasting strategy.
type Backend string

const (
	BackendDecomposition Backend = "decomposition"
	BackendSequence      Backend = "sequence"
)

// ParseBackend accepts the canonical names and the model aliases used by
// callers ("prophet", "lstm").
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "decomposition", "prophet":
		return BackendDecomposition, nil
	case "sequence", "lstm":
		return BackendSequence, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Frequency is the spacing of forecast periods.
type Frequency string

const (
	FreqDaily  Frequency = "D"
	FreqWeekly Frequency = "W"
	FreqHourly Frequency = "H"
)

// ParseFrequency returns daily for an empty string.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(strings.ToUpper(strings.TrimSpace(s))) {
	case "", FreqDaily:
		return FreqDaily, nil
	case FreqWeekly:
		return FreqWeekly, nil
	case FreqHourly:
		return FreqHourly, nil
	default:
		return "", fmt.Errorf("unsupported frequency %q", s)
	}
}

// Advance returns t moved forward by n periods.
func (f Frequency) Advance(t time.Time, n int) time.Time {
	switch f {
	case FreqWeekly:
		return t.AddDate(0, 0, 7*n)
	case FreqHourly:
		return t.Add(time.Duration(n) * time.Hour)
	default:
		return t.AddDate(0, 0, n)
	}
}

// ForecastPoint is one predicted value. Lower and Upper are nil when the
// backend provides no uncertainty bounds.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Estimate  float64   `json:"estimate"`
	Lower     *float64  `json:"lower,omitempty"`
	Upper     *float64  `json:"upper,omitempty"`
}

func (p ForecastPoint) HasBounds() bool { return p.Lower != nil && p.Upper != nil }

// ForecastResult is the backend-independent forecast output.
type ForecastResult struct {
	Ticker    string          `json:"ticker"`
	Backend   Backend         `json:"backend"`
	Frequency Frequency       `json:"frequency"`
	Points    []ForecastPoint `json:"points"`
}

// Float returns a pointer to v, for populating optional bounds.
func Float(v float64) *float64 { return &v }
