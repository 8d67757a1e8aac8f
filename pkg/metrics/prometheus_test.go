package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordForecast("decomposition", 0.2, 7)
	r.RecordForecast("decomposition", 0.1, 7)
	r.RecordFallback("AAPL", "data_unavailable")
	r.RecordSentiment("news", 0.4, true)
	r.RecordSentiment("news", 0, false)
	r.RecordError("fit_failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.forecasts.WithLabelValues("decomposition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbacks.WithLabelValues("data_unavailable")))
	assert.Equal(t, 0.4, testutil.ToFloat64(r.sentiment.WithLabelValues("news")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sentimentCalls.WithLabelValues("news", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("fit_failed")))
}
