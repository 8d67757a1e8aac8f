package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"PriceCast/internal/domain/models"
	domsvc "PriceCast/internal/domain/service"
)

const (
	weeklyPeriodDays = 7.0
	yearlyPeriodDays = 365.25

	// Seasonal terms are only fitted once enough history covers them.
	minWeeklySpanDays = 14.0
	minYearlySpanDays = 730.0
)

// DecompositionOptions tunes the trend/seasonality model.
type DecompositionOptions struct {
	Changepoints     int     // maximum trend changepoints
	ChangepointRange float64 // fraction of history eligible for changepoints
	ChangepointPrior float64 // ridge scale for changepoint deltas; smaller is stiffer
	SeasonalityPrior float64 // ridge scale for Fourier coefficients
	WeeklyOrder      int
	YearlyOrder      int
	IntervalWidth    float64 // central probability covered by lower/upper
	Frequency        models.Frequency
}

func DefaultDecompositionOptions() DecompositionOptions {
	return DecompositionOptions{
		Changepoints:     25,
		ChangepointRange: 0.8,
		ChangepointPrior: 0.05,
		SeasonalityPrior: 10,
		WeeklyOrder:      3,
		YearlyOrder:      10,
		IntervalWidth:    0.8,
		Frequency:        models.FreqDaily,
	}
}

// FittedModel holds the coefficients of a decomposition fit.
type FittedModel struct {
	start       time.Time
	last        time.Time
	spanDays    float64
	yScale      float64
	changepoint []float64 // scaled time of each changepoint
	weekly      int
	yearly      int
	beta        []float64
	sigma       float64 // residual std in price units
	n           int
}

// Decomposition forecasts with a piecewise-linear trend plus Fourier
// seasonality, solved as ridge-regularised least squares.
type Decomposition struct {
	opts DecompositionOptions
}

func NewDecomposition(opts DecompositionOptions) *Decomposition {
	def := DefaultDecompositionOptions()
	if opts.Changepoints < 0 {
		opts.Changepoints = 0
	}
	if opts.ChangepointRange <= 0 || opts.ChangepointRange > 1 {
		opts.ChangepointRange = def.ChangepointRange
	}
	if opts.ChangepointPrior <= 0 {
		opts.ChangepointPrior = def.ChangepointPrior
	}
	if opts.SeasonalityPrior <= 0 {
		opts.SeasonalityPrior = def.SeasonalityPrior
	}
	if opts.IntervalWidth <= 0 || opts.IntervalWidth >= 1 {
		opts.IntervalWidth = def.IntervalWidth
	}
	if opts.Frequency == "" {
		opts.Frequency = models.FreqDaily
	}
	return &Decomposition{opts: opts}
}

func (d *Decomposition) Backend() models.Backend { return models.BackendDecomposition }

// Forecast fits the series and predicts horizon periods at the configured frequency.
func (d *Decomposition) Forecast(_ context.Context, series *models.PriceSeries, horizon int) (*models.ForecastResult, error) {
	m, err := d.Fit(series)
	if err != nil {
		return nil, err
	}
	pts, err := d.Predict(m, horizon, d.opts.Frequency)
	if err != nil {
		return nil, err
	}
	return &models.ForecastResult{
		Ticker:    series.Ticker,
		Backend:   models.BackendDecomposition,
		Frequency: d.opts.Frequency,
		Points:    pts,
	}, nil
}

// Fit estimates trend and seasonality. The series is read, never modified.
func (d *Decomposition) Fit(series *models.PriceSeries) (*FittedModel, error) {
	if series.DistinctTimestamps() < 2 {
		return nil, fmt.Errorf("%w: need at least 2 distinct timestamps, got %d", models.ErrFitFailed, series.DistinctTimestamps())
	}

	pts := make([]models.PricePoint, series.Len())
	copy(pts, series.Points)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })

	ys := make([]float64, len(pts))
	for i, p := range pts {
		ys[i] = p.Close
	}
	if floats.HasNaN(ys) {
		return nil, fmt.Errorf("%w: series contains NaN", models.ErrFitFailed)
	}

	m := &FittedModel{
		start: pts[0].Timestamp,
		last:  pts[len(pts)-1].Timestamp,
		n:     len(pts),
	}
	m.spanDays = daysBetween(m.start, m.last)
	m.yScale = math.Max(math.Abs(floats.Max(ys)), math.Abs(floats.Min(ys)))
	if m.yScale == 0 {
		m.yScale = 1
	}
	if m.spanDays >= minWeeklySpanDays {
		m.weekly = d.opts.WeeklyOrder
	}
	if m.spanDays >= minYearlySpanDays {
		m.yearly = d.opts.YearlyOrder
	}

	ts := make([]float64, len(pts))
	for i, p := range pts {
		ts[i] = daysBetween(m.start, p.Timestamp) / m.spanDays
	}
	m.changepoint = placeChangepoints(ts, d.opts.Changepoints, d.opts.ChangepointRange)

	p := m.numFeatures()
	X := mat.NewDense(len(pts), p, nil)
	for i, pt := range pts {
		X.SetRow(i, m.features(pt.Timestamp))
	}
	yv := mat.NewVecDense(len(ys), nil)
	for i, y := range ys {
		yv.SetVec(i, y/m.yScale)
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	penalty := m.penalties(d.opts)
	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := xtx.At(i, j)
			if i == j {
				v += penalty[i] + 1e-10
			}
			sym.SetSym(i, j, v)
		}
	}
	var rhs mat.VecDense
	rhs.MulVec(X.T(), yv)

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, fmt.Errorf("%w: normal equations not positive definite", models.ErrFitFailed)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return nil, fmt.Errorf("%w: solve: %v", models.ErrFitFailed, err)
	}
	m.beta = make([]float64, p)
	for i := range m.beta {
		m.beta[i] = beta.AtVec(i)
		if math.IsNaN(m.beta[i]) || math.IsInf(m.beta[i], 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient", models.ErrFitFailed)
		}
	}

	var fitted mat.VecDense
	fitted.MulVec(X, &beta)
	resid := make([]float64, len(ys))
	for i, y := range ys {
		resid[i] = y - fitted.AtVec(i)*m.yScale
	}
	if len(resid) > 1 {
		m.sigma = stat.StdDev(resid, nil)
	}
	if math.IsNaN(m.sigma) {
		m.sigma = 0
	}
	return m, nil
}

// Predict produces horizon points after the last fitted timestamp, spaced by freq.
func (d *Decomposition) Predict(m *FittedModel, horizon int, freq models.Frequency) ([]models.ForecastPoint, error) {
	if horizon < 1 {
		return nil, models.ErrInvalidHorizon
	}
	if freq == "" {
		freq = models.FreqDaily
	}
	z := distuv.UnitNormal.Quantile(0.5 + d.opts.IntervalWidth/2)

	out := make([]models.ForecastPoint, horizon)
	for h := 1; h <= horizon; h++ {
		ts := freq.Advance(m.last, h)
		yhat := floats.Dot(m.features(ts), m.beta) * m.yScale

		// Spread grows with distance past the fitted range.
		ahead := daysBetween(m.last, ts)
		spread := z * m.sigma * math.Sqrt(1+ahead/math.Max(m.spanDays, 1))

		out[h-1] = models.ForecastPoint{
			Timestamp: ts,
			Estimate:  yhat,
			Lower:     models.Float(yhat - spread),
			Upper:     models.Float(yhat + spread),
		}
	}
	return out, nil
}

func (m *FittedModel) numFeatures() int {
	return 2 + len(m.changepoint) + 2*m.weekly + 2*m.yearly
}

// features builds the design row: intercept, slope, changepoint hinges,
// weekly then yearly Fourier pairs.
func (m *FittedModel) features(ts time.Time) []float64 {
	days := daysBetween(m.start, ts)
	t := days / m.spanDays

	row := make([]float64, 0, m.numFeatures())
	row = append(row, 1, t)
	for _, s := range m.changepoint {
		row = append(row, math.Max(0, t-s))
	}
	row = appendFourier(row, days, weeklyPeriodDays, m.weekly)
	row = appendFourier(row, days, yearlyPeriodDays, m.yearly)
	return row
}

func (m *FittedModel) penalties(opts DecompositionOptions) []float64 {
	pen := make([]float64, m.numFeatures())
	i := 2
	for range m.changepoint {
		pen[i] = 0.01 / (opts.ChangepointPrior * opts.ChangepointPrior)
		i++
	}
	for ; i < len(pen); i++ {
		pen[i] = 0.01 / (opts.SeasonalityPrior * opts.SeasonalityPrior)
	}
	return pen
}

func appendFourier(row []float64, days, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * days / period
		row = append(row, math.Sin(x), math.Cos(x))
	}
	return row
}

// placeChangepoints spreads up to n changepoints evenly over the first
// rangeFrac of the scaled timestamps.
func placeChangepoints(ts []float64, n int, rangeFrac float64) []float64 {
	hist := int(math.Floor(float64(len(ts)) * rangeFrac))
	if n > hist-1 {
		n = hist - 1
	}
	if n <= 0 {
		return nil
	}
	cps := make([]float64, 0, n)
	step := float64(hist-1) / float64(n)
	for k := 1; k <= n; k++ {
		idx := int(math.Round(step * float64(k)))
		if idx >= hist {
			idx = hist - 1
		}
		cps = append(cps, ts[idx])
	}
	return cps
}

func daysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

var _ domsvc.Forecaster = (*Decomposition)(nil)
