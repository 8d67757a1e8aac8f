package synthetic

import (
	"math/rand/v2"
	"time"

	"PriceCast/internal/domain/models"
	domsvc "PriceCast/internal/domain/service"
	"PriceCast/pkg/util"
)

const (
	DefaultDays = 90
	DefaultSeed = 42

	basePrice  = 100.0
	volatility = 2.0
	drift      = 0.5
)

// Generator produces a deterministic random-walk close series.
// Each call builds its own PCG source from the seed, so output depends only
// on seed, days and the clock.
type Generator struct {
	seed   uint64
	ticker string
	now    func() time.Time
}

type Option func(*Generator)

func WithSeed(seed uint64) Option { return func(g *Generator) { g.seed = seed } }

func WithClock(now func() time.Time) Option { return func(g *Generator) { g.now = now } }

func WithTicker(ticker string) Option { return func(g *Generator) { g.ticker = ticker } }

func New(opts ...Option) *Generator {
	g := &Generator{seed: DefaultSeed, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns days consecutive calendar-day points ending today (UTC
// midnight). A non-positive days value falls back to DefaultDays.
func (g *Generator) Generate(days int) *models.PriceSeries {
	if days <= 0 {
		days = DefaultDays
	}
	rng := rand.New(rand.NewPCG(g.seed, g.seed))

	today := util.TruncateDay(g.now())

	points := make([]models.PricePoint, days)
	level := 0.0
	for i := 0; i < days; i++ {
		level += rng.NormFloat64()*volatility + drift
		points[i] = models.PricePoint{
			Timestamp: today.AddDate(0, 0, i-(days-1)),
			Close:     level + basePrice,
		}
	}
	return &models.PriceSeries{Ticker: g.ticker, Source: models.SourceSynthetic, Points: points}
}

var _ domsvc.SeriesGenerator = (*Generator)(nil)
