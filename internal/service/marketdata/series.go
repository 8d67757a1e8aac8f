package marketdata

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/pkg/util"
)

// buildSeries drops non-finite closes, sorts by time and keeps the last
// observation of each UTC calendar day. An empty result is ErrDataUnavailable.
func buildSeries(ticker string, ts []time.Time, closes []*float64) (*models.PriceSeries, error) {
	n := min(len(ts), len(closes))
	pts := make([]models.PricePoint, 0, n)
	for i := 0; i < n; i++ {
		c := closes[i]
		if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) {
			continue
		}
		pts = append(pts, models.PricePoint{Timestamp: util.TruncateDay(ts[i]), Close: *c})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })

	out := pts[:0]
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1].Timestamp.Equal(p.Timestamp) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no price rows for %s", models.ErrDataUnavailable, ticker)
	}
	return &models.PriceSeries{
		Ticker: strings.ToUpper(ticker),
		Source: models.SourceLive,
		Points: out,
	}, nil
}
