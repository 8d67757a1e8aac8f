package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/synthetic"
	pkgkafka "PriceCast/pkg/kafka"
)

var fixedNow = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

type fakeData struct {
	series *models.PriceSeries
	err    error
	calls  int
}

func (f *fakeData) Fetch(context.Context, string, domrepo.Period, domrepo.Interval) (*models.PriceSeries, error) {
	f.calls++
	return f.series, f.err
}

type fakeSentiment struct {
	mu      sync.Mutex
	queries []string
	sig     models.SentimentSignal
}

func (f *fakeSentiment) AverageSentiment(_ context.Context, query string, source models.SentimentSource) models.SentimentSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	sig := f.sig
	sig.Source = source
	return sig
}

type fakePublisher struct {
	got []*models.ForecastResponse
	err error
}

func (f *fakePublisher) PublishForecast(_ context.Context, r *models.ForecastResponse) error {
	f.got = append(f.got, r)
	return f.err
}
func (f *fakePublisher) Close() error { return nil }

type recordingMetrics struct {
	fallbacks []string
}

func (r *recordingMetrics) RecordForecast(string, float64, int)   {}
func (r *recordingMetrics) RecordFallback(ticker, _ string)       { r.fallbacks = append(r.fallbacks, ticker) }
func (r *recordingMetrics) RecordError(string)                    {}
func (r *recordingMetrics) RecordSentiment(string, float64, bool) {}
func (r *recordingMetrics) RecordLatency(string, float64)         {}

func newPipeline(data domrepo.MarketData, sent SentimentAnalyzer, pub domrepo.Publisher, m domrepo.Metrics, parallel bool) *ForecastPipeline {
	gen := synthetic.New(synthetic.WithClock(func() time.Time { return fixedNow }))
	orch := forecast.NewOrchestrator(nil, nil,
		forecast.NewDecomposition(forecast.DefaultDecompositionOptions()),
		forecast.NewSequence(forecast.SequenceOptions{Window: 60, Epochs: 1, BatchSize: 32, Hidden: 4, LearningRate: 0.01, Seed: 7}),
	)
	return NewForecastPipeline(PipelineConfig{SyntheticDays: synthetic.DefaultDays, Parallel: parallel}, data, gen, orch, sent, pub, nil, m)
}

func TestPipelineSyntheticFallback(t *testing.T) {
	data := &fakeData{err: models.ErrDataUnavailable}
	m := &recordingMetrics{}
	pub := &fakePublisher{}
	p := newPipeline(data, nil, pub, m, false)

	resp, err := p.Run(context.Background(), models.ForecastRequest{Ticker: "aapl", HorizonDays: 7, Backend: "decomposition"})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", resp.Ticker)
	assert.Equal(t, models.SourceSynthetic, resp.DataSource)
	assert.NotEmpty(t, resp.RequestID)
	assert.Len(t, resp.RecentTail, RecentTailSize)
	assert.Equal(t, []string{"AAPL"}, m.fallbacks)
	require.Len(t, pub.got, 1)
	assert.Same(t, resp, pub.got[0])

	// end to end: 90-day synthetic series, horizon 7, decomposition
	res := resp.Forecast
	require.Len(t, res.Points, 7)
	last := resp.RecentTail[len(resp.RecentTail)-1].Timestamp
	assert.True(t, last.Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)))
	prev := last
	for _, pt := range res.Points {
		assert.True(t, pt.Timestamp.After(prev))
		prev = pt.Timestamp
		require.True(t, pt.HasBounds())
		assert.LessOrEqual(t, *pt.Lower, pt.Estimate)
		assert.GreaterOrEqual(t, *pt.Upper, pt.Estimate)
	}
	assert.True(t, res.Points[0].Timestamp.Equal(last.AddDate(0, 0, 1)))
}

func TestPipelineFallbackOnEmptyAndInvalidSeries(t *testing.T) {
	empty := &fakeData{series: &models.PriceSeries{Ticker: "X"}}
	resp, err := newPipeline(empty, nil, nil, nil, false).Run(context.Background(), models.ForecastRequest{Ticker: "X", HorizonDays: 3})
	require.NoError(t, err)
	assert.Equal(t, models.SourceSynthetic, resp.DataSource)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dup := &fakeData{series: &models.PriceSeries{Ticker: "X", Points: []models.PricePoint{{Timestamp: ts, Close: 1}, {Timestamp: ts, Close: 2}}}}
	resp, err = newPipeline(dup, nil, nil, nil, false).Run(context.Background(), models.ForecastRequest{Ticker: "X", HorizonDays: 3})
	require.NoError(t, err)
	assert.Equal(t, models.SourceSynthetic, resp.DataSource)
}

func TestPipelineLiveSeries(t *testing.T) {
	pts := make([]models.PricePoint, 40)
	for i := range pts {
		pts[i] = models.PricePoint{Timestamp: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC), Close: 100 + float64(i)}
	}
	data := &fakeData{series: &models.PriceSeries{Ticker: "MSFT", Points: pts}}
	sent := &fakeSentiment{sig: models.SentimentSignal{Score: 0.3, Available: true, Items: 4, Label: models.LabelPositive}}
	resp, err := newPipeline(data, sent, nil, nil, false).Run(context.Background(),
		models.ForecastRequest{Ticker: "MSFT", HorizonDays: 5, Backend: "prophet", Sentiment: "social"})
	require.NoError(t, err)

	assert.Equal(t, models.SourceLive, resp.DataSource)
	assert.Equal(t, models.BackendDecomposition, resp.Forecast.Backend)
	assert.Equal(t, 139.0, resp.RecentTail[4].Close)
	require.NotNil(t, resp.Sentiment)
	assert.Equal(t, models.SentimentSocial, resp.Sentiment.Source)
	assert.Equal(t, 0.3, resp.Sentiment.Score)
	assert.Equal(t, []string{"MSFT"}, sent.queries)
}

func flatSeries(ticker string, n int, close float64) *models.PriceSeries {
	pts := make([]models.PricePoint, n)
	for i := range pts {
		pts[i] = models.PricePoint{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), Close: close}
	}
	return &models.PriceSeries{Ticker: ticker, Points: pts}
}

func TestPipelineRefetchesEveryRun(t *testing.T) {
	data := &fakeData{series: flatSeries("AAPL", 30, 100)}
	p := newPipeline(data, nil, nil, nil, false)
	req := models.ForecastRequest{Ticker: "AAPL", HorizonDays: 2, Sentiment: SentimentNone}

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	data.series = flatSeries("AAPL", 30, 500)
	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, data.calls)
	assert.Equal(t, 100.0, first.RecentTail[len(first.RecentTail)-1].Close)
	assert.Equal(t, 500.0, second.RecentTail[len(second.RecentTail)-1].Close)
}

func TestPipelineSequenceNeedsHistory(t *testing.T) {
	pts := make([]models.PricePoint, 60)
	for i := range pts {
		pts[i] = models.PricePoint{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), Close: 50}
	}
	data := &fakeData{series: &models.PriceSeries{Ticker: "T", Points: pts}}
	_, err := newPipeline(data, nil, nil, nil, false).Run(context.Background(), models.ForecastRequest{Ticker: "T", HorizonDays: 3, Backend: "lstm"})
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestPipelineSequenceOnSynthetic(t *testing.T) {
	sent := &fakeSentiment{}
	resp, err := newPipeline(&fakeData{err: models.ErrDataUnavailable}, sent, nil, nil, true).Run(context.Background(),
		models.ForecastRequest{Ticker: "NVDA", HorizonDays: 4, Backend: "sequence", Sentiment: "news"})
	require.NoError(t, err)
	require.Len(t, resp.Forecast.Points, 4)
	last := resp.RecentTail[len(resp.RecentTail)-1].Timestamp
	for i, pt := range resp.Forecast.Points {
		assert.True(t, pt.Timestamp.Equal(last.AddDate(0, 0, i+1)))
		assert.Nil(t, pt.Lower)
		assert.Nil(t, pt.Upper)
	}
	require.NotNil(t, resp.Sentiment)
	assert.False(t, resp.Sentiment.Available)
}

func TestPipelineValidation(t *testing.T) {
	p := newPipeline(&fakeData{err: models.ErrDataUnavailable}, nil, nil, nil, false)
	ctx := context.Background()

	_, err := p.Run(ctx, models.ForecastRequest{Ticker: "A", HorizonDays: 0})
	assert.ErrorIs(t, err, models.ErrInvalidHorizon)
	_, err = p.Run(ctx, models.ForecastRequest{Ticker: "A", HorizonDays: 31})
	assert.ErrorIs(t, err, models.ErrInvalidHorizon)
	_, err = p.Run(ctx, models.ForecastRequest{Ticker: "A", HorizonDays: 3, Backend: "arima"})
	assert.ErrorIs(t, err, models.ErrUnknownBackend)
	_, err = p.Run(ctx, models.ForecastRequest{Ticker: " ", HorizonDays: 3})
	assert.Error(t, err)
}

func TestPipelineSentimentNoneAndPublishError(t *testing.T) {
	sent := &fakeSentiment{}
	pub := &fakePublisher{err: errors.New("broker down")}
	resp, err := newPipeline(&fakeData{err: models.ErrDataUnavailable}, sent, pub, nil, false).Run(context.Background(),
		models.ForecastRequest{Ticker: "A", HorizonDays: 2, Sentiment: SentimentNone})
	require.NoError(t, err)
	assert.Nil(t, resp.Sentiment)
	assert.Empty(t, sent.queries)
	assert.Len(t, pub.got, 1)
}

func TestPipelineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := &fakeData{err: context.Canceled}
	_, err := newPipeline(data, nil, nil, nil, false).Run(ctx, models.ForecastRequest{Ticker: "A", HorizonDays: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeRunner struct {
	got models.ForecastRequest
	err error
}

func (f *fakeRunner) Run(_ context.Context, req models.ForecastRequest) (*models.ForecastResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.ForecastResponse{RequestID: req.RequestID, Ticker: req.Ticker}, nil
}

func TestKafkaForecastHandler(t *testing.T) {
	r := &fakeRunner{}
	h := NewKafkaForecastHandler("forecast.requests", r, nil, nil)
	assert.Equal(t, "forecast.requests", h.Topic())

	ctx := pkgkafka.WithTraceID(context.Background(), "trace-1")
	body, _ := json.Marshal(map[string]any{"ticker": "AAPL"})
	require.NoError(t, h.Handle(ctx, body))
	assert.Equal(t, "AAPL", r.got.Ticker)
	assert.Equal(t, 7, r.got.HorizonDays)
	assert.Equal(t, "decomposition", r.got.Backend)
	assert.Equal(t, "trace-1", r.got.RequestID)

	body, _ = json.Marshal(map[string]any{"ticker": "AAPL", "backend": "Prophet", "sentiment_source": "NEWS"})
	require.NoError(t, h.Handle(ctx, body))
	assert.Equal(t, "prophet", r.got.Backend)
	assert.Equal(t, "news", r.got.Sentiment)

	err := h.Handle(ctx, []byte("{not json"))
	assert.ErrorIs(t, err, pkgkafka.ErrPermanent)

	body, _ = json.Marshal(map[string]any{"ticker": "AAPL", "horizon_days": 99})
	assert.ErrorIs(t, h.Handle(ctx, body), pkgkafka.ErrPermanent)

	r.err = models.ErrInsufficientHistory
	body, _ = json.Marshal(map[string]any{"ticker": "AAPL", "backend": "lstm"})
	assert.ErrorIs(t, h.Handle(ctx, body), pkgkafka.ErrPermanent)

	r.err = context.DeadlineExceeded
	err = h.Handle(ctx, body)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, pkgkafka.ErrPermanent)
}
