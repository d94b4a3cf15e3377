package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	pkgch "FinRank/pkg/clickhouse"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/util"
)

const barsTable = "finrank.daily_bars"

// BarSchema is the DDL for the daily bar archive.
var BarSchema = []string{
	`CREATE DATABASE IF NOT EXISTS finrank`,
	`CREATE TABLE IF NOT EXISTS finrank.daily_bars (
        day     Date,
        symbol  LowCardinality(String),
        open    Float64,
        high    Float64,
        low     Float64,
        close   Float64,
        volume  Float64,
        ingested_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(ingested_at)
    ORDER BY (symbol, day)`,
}

// ClickHouseBarStore reads and archives daily bars in ClickHouse.
type ClickHouseBarStore struct {
	db    *sql.DB
	l     *applogger.Logger
	now   func() time.Time
	table string
}

func NewClickHouseBarStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseBarStore{db: ch.DB(), l: l, now: time.Now, table: barsTable}
}

// History returns bars for symbol within period, oldest first.
func (s *ClickHouseBarStore) History(ctx context.Context, symbol string, period util.Period) ([]models.Bar, error) {
	start := time.Now()
	to := s.now().UTC()
	from := period.Start(to)

	// FINAL collapses re-ingested days to their latest version.
	q := fmt.Sprintf(`
        SELECT day, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND day >= ? AND day <= ?
        ORDER BY day ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		s.l.Error("clickhouse bars query error",
			applogger.String("symbol", symbol),
			applogger.String("period", period.String()),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 256)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Date, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	if len(out) == 0 {
		return nil, models.ErrNoBars
	}
	return out, nil
}

// StoreBars inserts bars using multi-row VALUES in chunks.
func (s *ClickHouseBarStore) StoreBars(ctx context.Context, bars []models.Bar) error {
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, b := range bars[start:end] {
			if b.Symbol == "" || b.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Date.UTC(), b.Symbol, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (day, symbol, open, high, low, close, volume) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert bars: %w", err)
		}
	}
	return nil
}

var (
	_ domrepo.PriceSource = (*ClickHouseBarStore)(nil)
	_ domrepo.BarArchive  = (*ClickHouseBarStore)(nil)
)
