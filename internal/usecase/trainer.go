package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	"FinRank/internal/services/features"
	"FinRank/internal/services/ml"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/util"
)

type TrainerConfig struct {
	Period       util.Period
	Forest       ml.ForestConfig
	FetchWorkers int
}

// Trainer fits and persists one segment model at a time.
type Trainer struct {
	source   domrepo.PriceSource
	store    domrepo.ArtifactStore
	registry *Registry
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	cfg      TrainerConfig
	l        *applogger.Logger
	now      func() time.Time
}

func NewTrainer(
	source domrepo.PriceSource,
	store domrepo.ArtifactStore,
	registry *Registry,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	cfg TrainerConfig,
	l *applogger.Logger,
) *Trainer {
	if cfg.FetchWorkers < 1 {
		cfg.FetchWorkers = 1
	}
	return &Trainer{
		source:   source,
		store:    store,
		registry: registry,
		events:   events,
		metrics:  metrics,
		cfg:      cfg,
		l:        l,
		now:      time.Now,
	}
}

// Train fits the segment on symbols. Unless force is set, an already trained
// segment is returned as is. Symbols that cannot be used are reported as skips.
func (t *Trainer) Train(ctx context.Context, segment models.Segment, symbols []string, force bool) (*SegmentModel, []models.Skip, error) {
	if m, ok := t.registry.Get(segment); ok && !force {
		t.l.Info("segment already trained, reusing model", applogger.String("segment", string(segment)))
		return m, nil, nil
	}
	start := time.Now()
	log := t.l.With(applogger.String("segment", string(segment)))

	prices, skips := t.fetch(ctx, segment, symbols)
	if err := ctx.Err(); err != nil {
		return nil, skips, err
	}
	if len(prices) == 0 {
		return nil, skips, fmt.Errorf("%s: %w", segment, models.ErrDataUnavailable)
	}

	var X [][]float64
	var y []float64
	kept := make(map[string][]models.Bar, len(prices))
	for _, sym := range sortedKeys(prices) {
		bars := prices[sym]
		sx, sy := features.TrainingSamples(bars)
		if len(sx) == 0 {
			log.Warn("no usable training rows", applogger.String("symbol", sym), applogger.Int("bars", len(bars)))
			skips = append(skips, models.Skip{Segment: segment, Symbol: sym, Reason: models.SkipInsufficientHistory})
			continue
		}
		X = append(X, sx...)
		y = append(y, sy...)
		kept[sym] = bars
	}
	if len(X) == 0 {
		return nil, skips, fmt.Errorf("%s: %w", segment, models.ErrNoTrainingData)
	}

	scaler, err := ml.FitScaler(X)
	if err != nil {
		return nil, skips, fmt.Errorf("%s: %w", segment, err)
	}
	forest, err := ml.FitForest(ctx, scaler.TransformAll(X), y, t.cfg.Forest)
	if err != nil {
		return nil, skips, fmt.Errorf("%s: %w", segment, err)
	}

	m := &SegmentModel{
		Segment:   segment,
		Regressor: forest,
		Scaler:    scaler,
		Prices:    kept,
		TrainedAt: t.now().UTC(),
		Samples:   len(X),
	}
	if err := t.persist(ctx, m, forest, scaler); err != nil {
		return nil, skips, err
	}
	t.registry.Put(m)

	if t.metrics != nil {
		t.metrics.RecordTraining(string(segment), len(kept), len(X))
		t.metrics.RecordLatency("train_segment", time.Since(start).Seconds())
	}
	log.Info("segment trained",
		applogger.Int("symbols", len(kept)),
		applogger.Int("samples", len(X)),
		applogger.Int("trees", len(forest.Trees)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	t.announce(ctx, m)
	return m, skips, nil
}

func (t *Trainer) persist(ctx context.Context, m *SegmentModel, forest *ml.Forest, scaler *ml.StandardScaler) error {
	mb, err := json.Marshal(forest)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	sb, err := json.Marshal(scaler)
	if err != nil {
		return fmt.Errorf("encode scaler: %w", err)
	}
	err = t.store.Save(ctx, &models.SegmentArtifacts{
		Segment: m.Segment,
		SavedAt: m.TrainedAt,
		Samples: m.Samples,
		Model:   mb,
		Scaler:  sb,
		Prices:  m.Prices,
	})
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("artifact_save")
		}
		return fmt.Errorf("save %s artifacts: %w", m.Segment, err)
	}
	return nil
}

func (t *Trainer) announce(ctx context.Context, m *SegmentModel) {
	if t.events == nil {
		return
	}
	ev := models.SegmentTrainedEvent{
		Segment:   m.Segment,
		Symbols:   m.Symbols(),
		Samples:   m.Samples,
		TrainedAt: m.TrainedAt,
	}
	if err := t.events.PublishSegmentTrained(ctx, ev); err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("event_publish")
		}
		t.l.Warn("publish segment trained event failed",
			applogger.String("segment", string(m.Segment)),
			applogger.Error(err),
		)
	}
}

// fetch loads every symbol's history with a bounded number of concurrent requests.
func (t *Trainer) fetch(ctx context.Context, segment models.Segment, symbols []string) (map[string][]models.Bar, []models.Skip) {
	type result struct {
		bars []models.Bar
		skip *models.Skip
	}
	results := make([]result, len(symbols))
	sem := make(chan struct{}, t.cfg.FetchWorkers)
	var wg sync.WaitGroup

	for i, sym := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, sym string) {
			defer wg.Done()
			defer func() { <-sem }()
			bars, err := t.source.History(ctx, sym, t.cfg.Period)
			switch {
			case errors.Is(err, models.ErrNoBars) || (err == nil && len(bars) == 0):
				t.l.Warn("no price data", applogger.String("symbol", sym))
				results[i].skip = &models.Skip{Segment: segment, Symbol: sym, Reason: models.SkipNoData}
			case err != nil:
				t.l.Warn("price fetch failed", applogger.String("symbol", sym), applogger.Error(err))
				results[i].skip = &models.Skip{Segment: segment, Symbol: sym, Reason: models.SkipFetchFailed}
			default:
				results[i].bars = bars
			}
		}(i, sym)
	}
	wg.Wait()

	prices := make(map[string][]models.Bar, len(symbols))
	var skips []models.Skip
	for i, r := range results {
		if r.skip != nil {
			skips = append(skips, *r.skip)
			if t.metrics != nil {
				t.metrics.RecordSkip(string(segment), r.skip.Reason)
			}
			continue
		}
		prices[symbols[i]] = r.bars
	}
	return prices, skips
}

func sortedKeys(m map[string][]models.Bar) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
