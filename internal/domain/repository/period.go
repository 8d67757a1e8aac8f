package repository

import "time"

// Period is the lookback range requested from a market data provider.
type Period string

const (
	Period1mo Period = "1mo"
	Period3mo Period = "3mo"
	Period6mo Period = "6mo"
	Period1y  Period = "1y"
	Period2y  Period = "2y"
	Period5y  Period = "5y"
)

// Interval is the bar size requested from a market data provider.
type Interval string

const (
	Interval1d  Interval = "1d"
	Interval1wk Interval = "1wk"
)

// IsValidPeriod returns true if p is a supported lookback.
func IsValidPeriod(p Period) bool {
	switch p {
	case Period1mo, Period3mo, Period6mo, Period1y, Period2y, Period5y:
		return true
	default:
		return false
	}
}

// DefaultPeriod returns the default lookback.
func DefaultPeriod() Period { return Period3mo }

// NormalizePeriod converts raw string to a valid period (or default).
func NormalizePeriod(s string) Period {
	p := Period(s)
	if IsValidPeriod(p) {
		return p
	}
	return DefaultPeriod()
}

// Start returns the beginning of the lookback window ending at end.
func (p Period) Start(end time.Time) time.Time {
	switch p {
	case Period1mo:
		return end.AddDate(0, -1, 0)
	case Period6mo:
		return end.AddDate(0, -6, 0)
	case Period1y:
		return end.AddDate(-1, 0, 0)
	case Period2y:
		return end.AddDate(-2, 0, 0)
	case Period5y:
		return end.AddDate(-5, 0, 0)
	default:
		return end.AddDate(0, -3, 0)
	}
}

// DefaultInterval returns the default bar size.
func DefaultInterval() Interval { return Interval1d }

// NormalizeInterval converts raw string to a valid interval (or default).
func NormalizeInterval(s string) Interval {
	switch i := Interval(s); i {
	case Interval1d, Interval1wk:
		return i
	default:
		return DefaultInterval()
	}
}
