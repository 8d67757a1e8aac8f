package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkghttp "PriceCast/pkg/http"
)

const DefaultFinnhubBaseURL = "https://finnhub.io/api/v1"

// Finnhub reads closes from the REST candle endpoint.
type Finnhub struct {
	apiKey  string
	baseURL string
	client  *pkghttp.Client
	now     func() time.Time
}

func NewFinnhub(apiKey, baseURL string, client *pkghttp.Client) *Finnhub {
	if baseURL == "" {
		baseURL = DefaultFinnhubBaseURL
	}
	if client == nil {
		client = pkghttp.NewClient()
	}
	return &Finnhub{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: client, now: time.Now}
}

type candleResponse struct {
	Close     []*float64 `json:"c"`
	Timestamp []int64    `json:"t"`
	Status    string     `json:"s"`
}

func resolution(i domrepo.Interval) string {
	if i == domrepo.Interval1wk {
		return "W"
	}
	return "D"
}

func (f *Finnhub) Fetch(ctx context.Context, ticker string, period domrepo.Period, interval domrepo.Interval) (*models.PriceSeries, error) {
	if f.apiKey == "" {
		return nil, fmt.Errorf("%w: finnhub api key not configured", models.ErrDataUnavailable)
	}
	to := f.now().UTC()
	from := domrepo.NormalizePeriod(string(period)).Start(to)

	var resp candleResponse
	err := f.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    f.baseURL + "/stock/candle",
		QueryParams: map[string][]string{
			"symbol":     {strings.ToUpper(ticker)},
			"resolution": {resolution(domrepo.NormalizeInterval(string(interval)))},
			"from":       {strconv.FormatInt(from.Unix(), 10)},
			"to":         {strconv.FormatInt(to.Unix(), 10)},
			"token":      {f.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: finnhub %s: %v", models.ErrDataUnavailable, ticker, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("%w: finnhub %s: status %q", models.ErrDataUnavailable, ticker, resp.Status)
	}

	ts := make([]time.Time, len(resp.Timestamp))
	for i, sec := range resp.Timestamp {
		ts[i] = time.Unix(sec, 0)
	}
	return buildSeries(ticker, ts, resp.Close)
}

var _ domrepo.MarketData = (*Finnhub)(nil)
