package forecast

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// MinMaxScaler maps values linearly into [0, 1] using the range observed at
// fit time. A constant series maps to 0 and inverts back to the constant.
type MinMaxScaler struct {
	Min float64
	Max float64
}

// FitMinMax records the min and max of values.
func FitMinMax(values []float64) (*MinMaxScaler, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("fit scaler: no values")
	}
	return &MinMaxScaler{Min: floats.Min(values), Max: floats.Max(values)}, nil
}

func (s *MinMaxScaler) span() float64 { return s.Max - s.Min }

// Transform returns scaled copies of values.
func (s *MinMaxScaler) Transform(values []float64) []float64 {
	out := make([]float64, len(values))
	span := s.span()
	if span == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - s.Min) / span
	}
	return out
}

// Inverse maps scaled values back to the original units.
func (s *MinMaxScaler) Inverse(scaled []float64) []float64 {
	out := make([]float64, len(scaled))
	span := s.span()
	for i, v := range scaled {
		out[i] = v*span + s.Min
	}
	return out
}

// BuildWindows slices series into overlapping inputs of length window, each
// paired with the value that follows it.
func BuildWindows(series []float64, window int) ([][]float64, []float64) {
	if window <= 0 || len(series) <= window {
		return nil, nil
	}
	n := len(series) - window
	xs := make([][]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		w := make([]float64, window)
		copy(w, series[i:i+window])
		xs[i] = w
		ys[i] = series[i+window]
	}
	return xs, ys
}
