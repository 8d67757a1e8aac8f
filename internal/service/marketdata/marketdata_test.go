package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/pkg/cache"
)

func day(d int) int64 {
	return time.Date(2024, 3, d, 14, 30, 0, 0, time.UTC).Unix()
}

func TestYahooFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "3mo", r.URL.Query().Get("range"))
		// out of order, one null bar and a duplicate day (last wins)
		body := `{"chart":{"result":[{"timestamp":[` +
			strconv.FormatInt(day(4), 10) + `,` +
			strconv.FormatInt(day(1), 10) + `,` +
			strconv.FormatInt(day(2), 10) + `,` +
			strconv.FormatInt(day(4)+60, 10) +
			`],"indicators":{"quote":[{"close":[104.0,101.0,null,104.5]}]}}],"error":null}}`
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, nil)
	s, err := y.Fetch(context.Background(), "aapl", "bogus", "")
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.Equal(t, "AAPL", s.Ticker)
	assert.Equal(t, models.SourceLive, s.Source)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 101.0, s.Points[0].Close)
	assert.Equal(t, 104.5, s.Points[1].Close)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), s.Points[1].Timestamp)
}

func TestYahooUnavailable(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"chart error": {http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		"all null":    {http.StatusOK, `{"chart":{"result":[{"timestamp":[1],"indicators":{"quote":[{"close":[null]}]}}]}}`},
		"no result":   {http.StatusOK, `{"chart":{"result":[]}}`},
		"http 404":    {http.StatusNotFound, `{}`},
		"bad json":    {http.StatusOK, `<html>`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewYahoo(srv.URL, nil).Fetch(context.Background(), "ZZZZ", domrepo.Period1mo, domrepo.Interval1d)
			assert.ErrorIs(t, err, models.ErrDataUnavailable)
		})
	}
}

func TestFinnhubFetch(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/stock/candle", r.URL.Path)
		assert.Equal(t, "MSFT", q.Get("symbol"))
		assert.Equal(t, "W", q.Get("resolution"))
		assert.Equal(t, "key", q.Get("token"))
		assert.Equal(t, strconv.FormatInt(now.AddDate(0, -6, 0).Unix(), 10), q.Get("from"))
		assert.Equal(t, strconv.FormatInt(now.Unix(), 10), q.Get("to"))
		_, _ = w.Write([]byte(`{"s":"ok","t":[` + strconv.FormatInt(day(1), 10) + `,` + strconv.FormatInt(day(8), 10) + `],"c":[410.2,415.9]}`))
	}))
	defer srv.Close()

	f := NewFinnhub("key", srv.URL, nil)
	f.now = func() time.Time { return now }
	s, err := f.Fetch(context.Background(), "msft", domrepo.Period6mo, domrepo.Interval1wk)
	require.NoError(t, err)
	assert.Equal(t, []float64{410.2, 415.9}, s.Closes())
}

func TestFinnhubNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"s":"no_data"}`))
	}))
	defer srv.Close()

	_, err := NewFinnhub("key", srv.URL, nil).Fetch(context.Background(), "X", "", "")
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	_, err = NewFinnhub("", srv.URL, nil).Fetch(context.Background(), "X", "", "")
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

type countingSource struct {
	calls  int
	series *models.PriceSeries
	err    error
}

func (c *countingSource) Fetch(context.Context, string, domrepo.Period, domrepo.Interval) (*models.PriceSeries, error) {
	c.calls++
	return c.series, c.err
}

func TestCachedFetch(t *testing.T) {
	src := &countingSource{series: &models.PriceSeries{
		Ticker: "AAPL",
		Source: models.SourceLive,
		Points: []models.PricePoint{{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 185.6}},
	}}
	c := NewCached(src, cache.NewMemoryCache(), time.Minute, nil)

	for i := 0; i < 3; i++ {
		s, err := c.Fetch(context.Background(), "AAPL", domrepo.Period3mo, domrepo.Interval1d)
		require.NoError(t, err)
		assert.Equal(t, 185.6, s.Last().Close)
		assert.True(t, s.Last().Timestamp.Equal(src.series.Last().Timestamp))
	}
	assert.Equal(t, 1, src.calls)

	failing := &countingSource{err: models.ErrDataUnavailable}
	c = NewCached(failing, cache.NewMemoryCache(), time.Minute, nil)
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), "AAPL", domrepo.Period3mo, domrepo.Interval1d)
		assert.ErrorIs(t, err, models.ErrDataUnavailable)
	}
	assert.Equal(t, 2, failing.calls)
}

func TestCachedZeroTTLAlwaysFetches(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	src := &countingSource{series: &models.PriceSeries{
		Ticker: "AAPL",
		Points: []models.PricePoint{{Timestamp: day, Close: 100}},
	}}
	c := NewCached(src, cache.NewMemoryCache(), 0, nil)

	s, err := c.Fetch(context.Background(), "AAPL", domrepo.Period3mo, domrepo.Interval1d)
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.Last().Close)

	src.series = &models.PriceSeries{
		Ticker: "AAPL",
		Points: []models.PricePoint{{Timestamp: day, Close: 500}},
	}
	s, err = c.Fetch(context.Background(), "AAPL", domrepo.Period3mo, domrepo.Interval1d)
	require.NoError(t, err)
	assert.Equal(t, 500.0, s.Last().Close)
	assert.Equal(t, 2, src.calls)
}
