package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkghttp "PriceCast/pkg/http"
)

const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo reads daily or weekly closes from the public chart API.
type Yahoo struct {
	baseURL string
	client  *pkghttp.Client
}

func NewYahoo(baseURL string, client *pkghttp.Client) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	if client == nil {
		client = pkghttp.NewClient()
	}
	return &Yahoo{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) Fetch(ctx context.Context, ticker string, period domrepo.Period, interval domrepo.Interval) (*models.PriceSeries, error) {
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", models.ErrDataUnavailable)
	}
	var resp chartResponse
	err := y.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    y.baseURL + "/v8/finance/chart/" + url.PathEscape(strings.ToUpper(ticker)),
		QueryParams: map[string][]string{
			"interval": {string(domrepo.NormalizeInterval(string(interval)))},
			"range":    {string(domrepo.NormalizePeriod(string(period)))},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo %s: %v", models.ErrDataUnavailable, ticker, err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("%w: yahoo %s: %s: %s", models.ErrDataUnavailable, ticker, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: yahoo %s: empty chart", models.ErrDataUnavailable, ticker)
	}

	r := resp.Chart.Result[0]
	ts := make([]time.Time, len(r.Timestamp))
	for i, sec := range r.Timestamp {
		ts[i] = time.Unix(sec, 0)
	}
	return buildSeries(ticker, ts, r.Indicators.Quote[0].Close)
}

var _ domrepo.MarketData = (*Yahoo)(nil)
