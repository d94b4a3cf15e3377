package usecase

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"FinRank/internal/domain/models"
	"FinRank/internal/repository"
	"FinRank/internal/services/ml"
	"FinRank/pkg/cache"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/metrics"
	"FinRank/pkg/util"
)

func makeBars(symbol string, n int, seed int64) []models.Bar {
	rng := rand.New(rand.NewSource(seed))
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100 + float64(seed%50)
	out := make([]models.Bar, n)
	for i := range out {
		open := price
		price *= 1 + rng.NormFloat64()*0.015 + 0.0004
		out[i] = models.Bar{
			Date:   day.AddDate(0, 0, i),
			Symbol: symbol,
			Open:   open,
			High:   maxf(open, price) * 1.005,
			Low:    minf(open, price) * 0.995,
			Close:  price,
			Volume: 100000 * (1 + rng.Float64()),
		}
	}
	return out
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// fakeSource serves fixed series per symbol and ignores the period.
type fakeSource struct {
	mu    sync.Mutex
	bars  map[string][]models.Bar
	errs  map[string]error
	calls int
	block chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{bars: map[string][]models.Bar{}, errs: map[string]error{}}
}

func (f *fakeSource) add(symbol string, n int, seed int64) {
	f.bars[symbol] = makeBars(symbol, n, seed)
}

func (f *fakeSource) History(ctx context.Context, symbol string, _ util.Period) ([]models.Bar, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, models.ErrNoBars
	}
	return append([]models.Bar(nil), bars...), nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingCache struct{ cache.Service }

func (failingCache) Get(context.Context, string, interface{}) error {
	return errors.New("redis: connection refused")
}

type recordingSink struct {
	sets []*models.RecommendationSet
	err  error
}

func (s *recordingSink) Store(_ context.Context, set *models.RecommendationSet) error {
	s.sets = append(s.sets, set)
	return s.err
}

type env struct {
	root     string
	source   *fakeSource
	store    *repository.FileArtifactStore
	registry *Registry
	trainer  *Trainer
	orch     *Orchestrator
	cache    *cache.MemoryCache
}

func testForest() ml.ForestConfig {
	return ml.ForestConfig{Trees: 8, Seed: 42, MaxDepth: 8, MinSamplesLeaf: 2, Workers: 2}
}

func newEnv(t *testing.T, universe map[string][]string) *env {
	t.Helper()
	l := applogger.Nop()
	src := newFakeSource()
	root := t.TempDir()
	store := repository.NewFileArtifactStore(root, 2, l)
	reg := NewRegistry()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })

	tr := NewTrainer(src, store, reg, nil, metrics.Nop{}, TrainerConfig{
		Period:       util.MustParsePeriod("1y"),
		Forest:       testForest(),
		FetchWorkers: 3,
	}, l)
	orch := NewOrchestrator(reg, NewRecommender(5, metrics.Nop{}, l), tr,
		NewUniverse(mc, 24*time.Hour, universe, l), mc, src, metrics.Nop{},
		OrchestratorConfig{
			VerifyPeriod:   util.MustParsePeriod("1mo"),
			MinHistoryDays: 20,
			MinSymbols:     5,
			LockTTL:        time.Minute,
			TopN:           5,
		}, l)
	return &env{root: root, source: src, store: store, registry: reg, trainer: tr, orch: orch, cache: mc}
}

func symbols(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + string(rune('A'+i)) + ".NS"
	}
	return out
}

var profile = models.RiskProfile{
	RiskToleranceScore:       60,
	TargetAmount:             1000000,
	MonthlyInvestment:        50000,
	InvestmentDurationMonths: 60,
}
