package models

import "errors"

// Error taxonomy shared by the data, forecasting and API layers. Callers
// classify with errors.Is; producers wrap with fmt.Errorf("...: %w").
var (
	// ErrDataUnavailable: the market data provider failed or returned nothing.
	// Recovered by the pipeline through synthetic substitution.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrInsufficientHistory: the series is too short for the selected backend.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrFitFailed: the decomposition model could not be fitted.
	ErrFitFailed = errors.New("decomposition fit failed")
	// ErrTrainingFailed: the sequence model diverged or produced non-finite values.
	ErrTrainingFailed = errors.New("sequence training failed")
	// ErrNoDataAvailable: neither live nor synthetic data could be produced.
	ErrNoDataAvailable = errors.New("no data available")

	ErrInvalidHorizon = errors.New("horizon must be at least 1")
	ErrUnknownBackend = errors.New("unknown forecast backend")
	ErrInvalidSeries  = errors.New("invalid price series")
)
