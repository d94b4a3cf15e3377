package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FinRank/internal/domain/models"
	"FinRank/internal/services/scoring"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/metrics"
)

func trainAll(t *testing.T, e *env) map[models.Segment][]string {
	t.Helper()
	table := map[models.Segment][]string{
		models.LargeCap: symbols("L", 5),
		models.MidCap:   symbols("M", 5),
		models.SmallCap: symbols("S", 5),
	}
	seed := int64(1)
	for _, seg := range models.Segments {
		for _, s := range table[seg] {
			e.source.add(s, 120, seed)
			seed++
		}
		if _, _, err := e.trainer.Train(context.Background(), seg, table[seg], true); err != nil {
			t.Fatalf("train %s: %v", seg, err)
		}
	}
	return table
}

func TestRecommendMergesGlobalTopFive(t *testing.T) {
	e := newEnv(t, nil)
	trainAll(t, e)

	got, _, err := e.orch.Recommend(context.Background(), profile)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	// Score all 15 candidates and take the best 5 directly.
	wide := NewRecommender(100, metrics.Nop{}, applogger.Nop())
	var all []models.Recommendation
	for _, seg := range models.Segments {
		m, _ := e.registry.Get(seg)
		recs, _, err := wide.Recommend(m, profile)
		if err != nil {
			t.Fatalf("score %s: %v", seg, err)
		}
		all = append(all, recs...)
	}
	want := scoring.Rank(all, 5)

	if len(got) != 5 {
		t.Fatalf("got %d recommendations, want 5", len(got))
	}
	for i := range want {
		if got[i].Symbol != want[i].Symbol || got[i].RiskAdjustedScore != want[i].RiskAdjustedScore {
			t.Fatalf("rank %d: got %s (%v), want %s (%v)", i, got[i].Symbol, got[i].RiskAdjustedScore, want[i].Symbol, want[i].RiskAdjustedScore)
		}
		if !got[i].MarketCapCategory.Valid() {
			t.Fatalf("rank %d has no segment tag", i)
		}
	}
}

func TestRecommendSkipsUntrainedSegments(t *testing.T) {
	e := newEnv(t, nil)
	syms := symbols("M", 5)
	for i, s := range syms {
		e.source.add(s, 120, int64(i+20))
	}
	if _, _, err := e.trainer.Train(context.Background(), models.MidCap, syms, true); err != nil {
		t.Fatalf("train: %v", err)
	}

	got, skips, err := e.orch.Recommend(context.Background(), profile)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for _, r := range got {
		if r.MarketCapCategory != models.MidCap {
			t.Fatalf("unexpected segment %s", r.MarketCapCategory)
		}
	}
	var untrained []models.Segment
	for _, s := range skips {
		if s.Reason == models.SkipSegmentUntrained {
			untrained = append(untrained, s.Segment)
		}
	}
	if len(untrained) != 2 || untrained[0] != models.LargeCap || untrained[1] != models.SmallCap {
		t.Fatalf("unexpected segment skips %v", untrained)
	}
}

func TestRecommendWithNothingTrained(t *testing.T) {
	e := newEnv(t, nil)
	_, skips, err := e.orch.Recommend(context.Background(), profile)
	if !errors.Is(err, models.ErrNoRecommendations) {
		t.Fatalf("expected ErrNoRecommendations, got %v", err)
	}
	if len(skips) != 3 {
		t.Fatalf("expected 3 segment skips, got %d", len(skips))
	}
}

func TestRetrainSkipsSegmentWithTooFewVerifiedSymbols(t *testing.T) {
	universe := map[string][]string{
		"large_cap": symbols("L", 5),
		"mid_cap":   symbols("M", 5),
		"small_cap": symbols("S", 5),
	}
	e := newEnv(t, universe)
	seed := int64(1)
	for _, name := range []string{"large_cap", "small_cap"} {
		for _, s := range universe[name] {
			e.source.add(s, 120, seed)
			seed++
		}
	}
	// Only 3 mid caps have enough history.
	for i, s := range universe["mid_cap"] {
		n := 120
		if i >= 3 {
			n = 10
		}
		e.source.add(s, n, seed)
		seed++
	}

	report, err := e.orch.RetrainAll(context.Background(), RetrainOptions{Force: true, RequestedBy: "test"})
	if err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if report.TrainedCount() != 2 {
		t.Fatalf("trained %d segments, want 2", report.TrainedCount())
	}
	mid := report.Segments[1]
	if mid.Segment != models.MidCap || mid.Trained || len(mid.Verified) != 3 {
		t.Fatalf("unexpected mid cap result %+v", mid)
	}
	if !strings.Contains(mid.Error, models.ErrInsufficientSymbols.Error()) {
		t.Fatalf("mid cap error %q", mid.Error)
	}
	if _, ok := e.registry.Get(models.MidCap); ok {
		t.Fatalf("mid cap should stay untrained")
	}
	for _, seg := range []models.Segment{models.LargeCap, models.SmallCap} {
		if _, ok := e.registry.Get(seg); !ok {
			t.Fatalf("%s should be trained", seg)
		}
	}
	if ok, _ := e.cache.Exists(context.Background(), "retrain:large_cap"); ok {
		t.Fatalf("segment lock not released")
	}
}

func TestRetrainFailsWhenNoSegmentTrains(t *testing.T) {
	e := newEnv(t, map[string][]string{"large_cap": symbols("L", 5)})
	report, err := e.orch.RetrainAll(context.Background(), RetrainOptions{Force: true})
	if !errors.Is(err, models.ErrNoSegmentsTrained) {
		t.Fatalf("expected ErrNoSegmentsTrained, got %v", err)
	}
	if report == nil || len(report.Segments) != 3 {
		t.Fatalf("expected a report for every segment, got %+v", report)
	}
}

func TestRetrainRunsDoNotOverlap(t *testing.T) {
	e := newEnv(t, map[string][]string{"large_cap": symbols("L", 5)})
	e.source.block = make(chan struct{})

	id, err := e.orch.RetrainAsync(RetrainOptions{Force: true})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if id.String() == "" {
		t.Fatalf("empty run id")
	}
	if _, err := e.orch.RetrainAll(context.Background(), RetrainOptions{}); !errors.Is(err, models.ErrRetrainInProgress) {
		t.Fatalf("expected ErrRetrainInProgress, got %v", err)
	}
	close(e.source.block)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.orch.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if _, err := e.orch.RetrainAsync(RetrainOptions{}); err != nil {
		t.Fatalf("second run should start after the first finished: %v", err)
	}
	if err := e.orch.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestRecommendSkipsSegmentWithoutCachedPrices(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	trainAll(t, e)

	files, err := filepath.Glob(filepath.Join(e.root, string(models.LargeCap), "gen-*", "prices.json"))
	if err != nil || len(files) == 0 {
		t.Fatalf("no saved prices for large cap: %v", err)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			t.Fatalf("remove %s: %v", f, err)
		}
	}
	loaded := LoadRegistry(ctx, e.store, applogger.Nop())
	m, ok := loaded.Get(models.LargeCap)
	if !ok || len(m.Prices) != 0 {
		t.Fatalf("large cap should load trained without prices, ok=%v prices=%d", ok, len(m.Prices))
	}
	e.registry.Put(m)

	got, skips, err := e.orch.Recommend(ctx, profile)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("other segments should still be scored")
	}
	for _, r := range got {
		if r.MarketCapCategory == models.LargeCap {
			t.Fatalf("large cap scored without prices: %s", r.Symbol)
		}
	}
	want := models.Skip{Segment: models.LargeCap, Reason: models.SkipSegmentFailed}
	found := false
	for _, s := range skips {
		if s == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing %+v in skips %v", want, skips)
	}
}

func TestForcedRetrainRediscoversUniverse(t *testing.T) {
	ctx := context.Background()
	universe := map[string][]string{
		"large_cap": symbols("L", 5),
		"mid_cap":   symbols("M", 5),
		"small_cap": symbols("S", 5),
	}
	e := newEnv(t, universe)
	seed := int64(1)
	for _, syms := range universe {
		for _, s := range syms {
			e.source.add(s, 120, seed)
			seed++
		}
	}
	stale := models.StockUniverse{
		Timestamp: time.Now().UTC(),
		Stocks:    map[models.Segment][]string{models.LargeCap: {"GONE.NS"}},
	}
	if err := e.cache.Set(ctx, UniverseCacheKey, stale, time.Hour); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	// A scheduled run trusts the fresh cached table.
	if _, err := e.orch.RetrainAll(ctx, RetrainOptions{}); !errors.Is(err, models.ErrNoSegmentsTrained) {
		t.Fatalf("expected ErrNoSegmentsTrained from the stale table, got %v", err)
	}

	report, err := e.orch.RetrainAll(ctx, RetrainOptions{Force: true, RequestedBy: "test"})
	if err != nil {
		t.Fatalf("forced retrain: %v", err)
	}
	if report.TrainedCount() != 3 {
		t.Fatalf("trained %d segments, want 3", report.TrainedCount())
	}
	if got := e.orch.CategoryOf(ctx, "LA.NS"); got != models.LargeCap {
		t.Fatalf("LA.NS category %s, want large_cap", got)
	}
	if got := e.orch.CategoryOf(ctx, "GONE.NS"); got != models.UnknownSegment {
		t.Fatalf("GONE.NS category %s, want unknown", got)
	}
}
