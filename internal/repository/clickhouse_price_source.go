package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHPriceSource implements MarketData over daily candle tables in ClickHouse.
// The weekly interval reads a separate table when one is configured.
type CHPriceSource struct {
	db          *sql.DB
	dailyTable  string
	weeklyTable string
	l           *applogger.Logger
	now         func() time.Time
}

func NewCHPriceSource(db *sql.DB, dailyTable, weeklyTable string, l *applogger.Logger) (*CHPriceSource, error) {
	if db == nil {
		return nil, fmt.Errorf("clickhouse price source: nil db")
	}
	if weeklyTable == "" {
		weeklyTable = dailyTable
	}
	for _, t := range []string{dailyTable, weeklyTable} {
		if !tableName.MatchString(t) {
			return nil, fmt.Errorf("clickhouse price source: invalid table name %q", t)
		}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHPriceSource{db: db, dailyTable: dailyTable, weeklyTable: weeklyTable, l: l, now: time.Now}, nil
}

func (s *CHPriceSource) table(i domrepo.Interval) string {
	if i == domrepo.Interval1wk {
		return s.weeklyTable
	}
	return s.dailyTable
}

func (s *CHPriceSource) Fetch(ctx context.Context, ticker string, period domrepo.Period, interval domrepo.Interval) (*models.PriceSeries, error) {
	start := time.Now()
	interval = domrepo.NormalizeInterval(string(interval))
	table := s.table(interval)
	symbol := strings.ToUpper(ticker)
	from := domrepo.NormalizePeriod(string(period)).Start(s.now().UTC())

	const qtpl = `
        SELECT bucket, close
        FROM %s
        WHERE symbol = ? AND bucket >= ?
        ORDER BY bucket ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), symbol, from)
	if err != nil {
		s.l.Error("clickhouse price query error",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%w: clickhouse query: %v", models.ErrDataUnavailable, err)
	}
	defer rows.Close()

	pts := make([]models.PricePoint, 0, 256)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Timestamp, &p.Close); err != nil {
			return nil, fmt.Errorf("%w: clickhouse scan: %v", models.ErrDataUnavailable, err)
		}
		p.Timestamp = util.TruncateDay(p.Timestamp)
		// collapse intraday duplicates, last wins
		if n := len(pts); n > 0 && pts[n-1].Timestamp.Equal(p.Timestamp) {
			pts[n-1] = p
			continue
		}
		pts = append(pts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: clickhouse rows: %v", models.ErrDataUnavailable, err)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("%w: no rows for %s in %s", models.ErrDataUnavailable, symbol, table)
	}

	s.l.Debug("clickhouse price query ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(pts)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return &models.PriceSeries{Ticker: symbol, Source: models.SourceLive, Points: pts}, nil
}

var _ domrepo.MarketData = (*CHPriceSource)(nil)
