package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts      *prometheus.CounterVec
	forecastPoints *prometheus.HistogramVec
	fallbacks      *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	sentiment      *prometheus.GaugeVec
	sentimentCalls *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_forecasts_total",
				Help: "Total number of completed forecasts",
			},
			[]string{"backend"},
		),
		forecastPoints: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_forecast_points",
				Help:    "Number of points per forecast",
				Buckets: []float64{1, 3, 7, 14, 30},
			},
			[]string{"backend"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_synthetic_fallbacks_total",
				Help: "Requests served from the synthetic series",
			},
			[]string{"reason"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		sentiment: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_last_sentiment_score",
				Help: "Last sentiment score per source",
			},
			[]string{"source"},
		),
		sentimentCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_sentiment_requests_total",
				Help: "Sentiment requests by source and availability",
			},
			[]string{"source", "available"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast records a completed forecast and its training/fit time.
func (r *Recorder) RecordForecast(backend string, seconds float64, points int) {
	r.forecasts.WithLabelValues(backend).Inc()
	r.forecastPoints.WithLabelValues(backend).Observe(float64(points))
	r.latency.WithLabelValues("forecast_" + backend).Observe(seconds)
}

// RecordFallback counts a synthetic substitution. The ticker is not a label
// to keep cardinality bounded.
func (r *Recorder) RecordFallback(_ string, reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordSentiment(source string, score float64, available bool) {
	r.sentimentCalls.WithLabelValues(source, strconv.FormatBool(available)).Inc()
	if available {
		r.sentiment.WithLabelValues(source).Set(score)
	}
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordForecast(string, float64, int)   {}
func (Noop) RecordFallback(string, string)         {}
func (Noop) RecordError(string)                    {}
func (Noop) RecordSentiment(string, float64, bool) {}
func (Noop) RecordLatency(string, float64)         {}
