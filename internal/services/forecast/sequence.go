package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"PriceCast/internal/domain/models"
	domsvc "PriceCast/internal/domain/service"
)

// SequenceOptions configures the LSTM backend.
type SequenceOptions struct {
	Window       int
	Epochs       int
	BatchSize    int
	Hidden       int
	Dropout      float64
	LearningRate float64
	// Seed drives weight init, dropout and shuffling. Zero picks a
	// time-derived seed.
	Seed uint64
	// Frequency spaces the predicted points; daily when empty.
	Frequency models.Frequency
}

func DefaultSequenceOptions() SequenceOptions {
	return SequenceOptions{
		Window:       60,
		Epochs:       5,
		BatchSize:    16,
		Hidden:       50,
		Dropout:      0.2,
		LearningRate: 0.001,
		Seed:         42,
		Frequency:    models.FreqDaily,
	}
}

// Sequence trains a fresh two-layer LSTM per call on min-max scaled windows
// and rolls it forward autoregressively. It produces no uncertainty bounds.
type Sequence struct {
	opts SequenceOptions
}

func NewSequence(opts SequenceOptions) *Sequence {
	def := DefaultSequenceOptions()
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.Epochs <= 0 {
		opts.Epochs = def.Epochs
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Hidden <= 0 {
		opts.Hidden = def.Hidden
	}
	if opts.Dropout < 0 || opts.Dropout >= 1 {
		opts.Dropout = def.Dropout
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}
	if opts.Frequency == "" {
		opts.Frequency = def.Frequency
	}
	return &Sequence{opts: opts}
}

func (s *Sequence) Backend() models.Backend { return models.BackendSequence }

// MinHistory is the shortest series the backend accepts.
func (s *Sequence) MinHistory() int { return s.opts.Window + 1 }

func (s *Sequence) Forecast(ctx context.Context, series *models.PriceSeries, horizon int) (*models.ForecastResult, error) {
	return s.FitAndPredict(ctx, series, horizon)
}

// FitAndPredict scales the closes, trains on sliding windows, rolls the model
// forward horizon steps and maps predictions back to prices. Timestamps are
// consecutive periods of the configured frequency after the last input point.
func (s *Sequence) FitAndPredict(ctx context.Context, series *models.PriceSeries, horizon int) (*models.ForecastResult, error) {
	if horizon < 1 {
		return nil, models.ErrInvalidHorizon
	}
	if series.Len() <= s.opts.Window {
		return nil, fmt.Errorf("%w: sequence model needs more than %d points, got %d",
			models.ErrInsufficientHistory, s.opts.Window, series.Len())
	}

	closes := series.Closes()
	scaler, err := FitMinMax(closes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTrainingFailed, err)
	}
	scaled := scaler.Transform(closes)
	xs, ys := BuildWindows(scaled, s.opts.Window)

	seed := s.opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	net := newNetwork(s.opts.Hidden, s.opts.Dropout, rng)

	if err := s.train(ctx, net, xs, ys, rng); err != nil {
		return nil, err
	}

	window := make([]float64, s.opts.Window)
	copy(window, scaled[len(scaled)-s.opts.Window:])
	preds := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		p := net.predict(window)
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: non-finite prediction at step %d", models.ErrTrainingFailed, h+1)
		}
		preds[h] = p
		window = append(window[1:], p)
	}

	values := scaler.Inverse(preds)
	last := series.Last().Timestamp
	pts := make([]models.ForecastPoint, horizon)
	for h, v := range values {
		pts[h] = models.ForecastPoint{
			Timestamp: s.opts.Frequency.Advance(last, h+1),
			Estimate:  v,
		}
	}
	return &models.ForecastResult{
		Ticker:    series.Ticker,
		Backend:   models.BackendSequence,
		Frequency: s.opts.Frequency,
		Points:    pts,
	}, nil
}

// train runs mini-batch Adam over shuffled windows. The context is only
// consulted between epochs.
func (s *Sequence) train(ctx context.Context, net *network, xs [][]float64, ys []float64, rng *rand.Rand) error {
	grads := net.newGrads()
	opt := newAdam(s.opts.LearningRate, net.params())
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < s.opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sum float64
		for start := 0; start < len(order); start += s.opts.BatchSize {
			end := min(start+s.opts.BatchSize, len(order))
			scale := 1 / float64(end-start)
			grads.zero()
			for _, idx := range order[start:end] {
				sum += net.trainStep(xs[idx], ys[idx], scale, rng, grads)
			}
			opt.step(net.params(), grads.params())
		}
		loss := sum / float64(len(order))
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return fmt.Errorf("%w: non-finite loss at epoch %d", models.ErrTrainingFailed, epoch+1)
		}
	}
	return nil
}

var _ domsvc.Forecaster = (*Sequence)(nil)
