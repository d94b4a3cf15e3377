package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	applogger "FinRank/pkg/logger"
)

// RecommendationSchema is the DDL for persisted recommendation sets.
var RecommendationSchema = []string{
	`CREATE TABLE IF NOT EXISTS investment_recommendations (
        id                   BIGSERIAL PRIMARY KEY,
        batch_id             UUID NOT NULL,
        generated_at         TIMESTAMPTZ NOT NULL,
        rank                 INT NOT NULL,
        symbol               TEXT NOT NULL,
        market_cap_category  TEXT NOT NULL,
        current_price        NUMERIC(18,4) NOT NULL,
        expected_return      DOUBLE PRECISION NOT NULL,
        risk_adjusted_score  DOUBLE PRECISION,
        shares_possible      NUMERIC(18,4),
        projected_value      NUMERIC(24,2),
        risk_tolerance_score DOUBLE PRECISION NOT NULL,
        target_amount        NUMERIC(18,2) NOT NULL,
        monthly_investment   NUMERIC(18,2) NOT NULL,
        investment_duration  INT NOT NULL,
        details              JSONB NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS investment_recommendations_batch_idx
        ON investment_recommendations (batch_id)`,
}

var recommendationColumns = []string{
	"batch_id", "generated_at", "rank", "symbol", "market_cap_category",
	"current_price", "expected_return", "risk_adjusted_score", "shares_possible",
	"projected_value", "risk_tolerance_score", "target_amount", "monthly_investment",
	"investment_duration", "details",
}

// PostgresRecommendationStore writes each recommendation set in one COPY.
type PostgresRecommendationStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// OpenPostgres opens a lib/pq pool.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewPostgresRecommendationStore(db *sql.DB, l *applogger.Logger) *PostgresRecommendationStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &PostgresRecommendationStore{db: db, l: l}
}

// Init creates the table if needed.
func (s *PostgresRecommendationStore) Init(ctx context.Context) error {
	for _, stmt := range RecommendationSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init recommendations schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresRecommendationStore) Store(ctx context.Context, set *models.RecommendationSet) error {
	if set == nil || len(set.Items) == 0 {
		return nil
	}
	rows, err := recommendationRows(set)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("investment_recommendations", recommendationColumns...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			stmt.Close()
			return fmt.Errorf("copy row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.l.Debug("recommendations stored",
		applogger.String("batch_id", set.BatchID.String()),
		applogger.Int("rows", len(rows)),
	)
	return nil
}

// recommendationRows flattens a set into COPY rows ordered like recommendationColumns.
func recommendationRows(set *models.RecommendationSet) ([][]interface{}, error) {
	p := set.Profile
	out := make([][]interface{}, 0, len(set.Items))
	for i, it := range set.Items {
		details, err := json.Marshal(struct {
			Risk      models.RiskMetrics         `json:"risk_metrics"`
			Technical models.TechnicalIndicators `json:"technical_indicators"`
		}{it.RiskMetrics, it.TechnicalIndicators})
		if err != nil {
			return nil, fmt.Errorf("encode details for %s: %w", it.Symbol, err)
		}
		out = append(out, []interface{}{
			set.BatchID.String(),
			set.GeneratedAt.UTC(),
			i + 1,
			it.Symbol,
			string(it.MarketCapCategory),
			money(it.CurrentPrice, 4),
			it.ExpectedReturn,
			nullFloat(it.RiskAdjustedScore),
			money(it.SharesPossible, 4),
			money(it.ProjectedValue, 2),
			p.RiskToleranceScore,
			money(p.TargetAmount, 2),
			money(p.MonthlyInvestment, 2),
			p.InvestmentDurationMonths,
			string(details),
		})
	}
	return out, nil
}

// money rounds v half away from zero; non-finite values become NULL.
func money(v float64, places int32) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return decimal.NewFromFloat(v).Round(places).String()
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// publisher is the part of pkg/kafka.Producer the sinks use.
type publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaRecommendationPublisher emits every set keyed by batch id.
type KafkaRecommendationPublisher struct {
	p     publisher
	topic string
}

func NewKafkaRecommendationPublisher(p publisher, topic string) *KafkaRecommendationPublisher {
	return &KafkaRecommendationPublisher{p: p, topic: topic}
}

func (k *KafkaRecommendationPublisher) Store(ctx context.Context, set *models.RecommendationSet) error {
	if set == nil {
		return nil
	}
	return k.p.Publish(ctx, k.topic, []byte(set.BatchID.String()), set)
}

// KafkaEventPublisher emits segment lifecycle events keyed by segment.
type KafkaEventPublisher struct {
	p     publisher
	topic string
}

func NewKafkaEventPublisher(p publisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{p: p, topic: topic}
}

func (k *KafkaEventPublisher) PublishSegmentTrained(ctx context.Context, ev models.SegmentTrainedEvent) error {
	return k.p.Publish(ctx, k.topic, []byte(ev.Segment), ev)
}

// MultiSink fans a set out to every sink and joins their errors.
type MultiSink []domrepo.RecommendationSink

func (m MultiSink) Store(ctx context.Context, set *models.RecommendationSet) error {
	var errs []error
	for _, s := range m {
		if err := s.Store(ctx, set); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type NopSink struct{}

func (NopSink) Store(context.Context, *models.RecommendationSet) error { return nil }

type NopEventPublisher struct{}

func (NopEventPublisher) PublishSegmentTrained(context.Context, models.SegmentTrainedEvent) error {
	return nil
}

var (
	_ domrepo.RecommendationSink = (*PostgresRecommendationStore)(nil)
	_ domrepo.RecommendationSink = (*KafkaRecommendationPublisher)(nil)
	_ domrepo.RecommendationSink = MultiSink(nil)
	_ domrepo.EventPublisher     = (*KafkaEventPublisher)(nil)
	_ domrepo.EventPublisher     = NopEventPublisher{}
)
