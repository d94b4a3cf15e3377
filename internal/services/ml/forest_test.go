package ml

import (
	"context"
	"encoding/json"
	"math"
	"testing"
)

func linearData(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := float64(i) / 10
		x1 := float64(i % 3)
		X[i] = []float64{x0, x1}
		y[i] = 2*x0 + 0.5*x1
	}
	return X, y
}

func TestForestFitsSimpleFunction(t *testing.T) {
	X, y := linearData(200)
	cfg := DefaultForestConfig()
	cfg.Trees = 30
	f, err := FitForest(context.Background(), X, y, cfg)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	for _, i := range []int{20, 75, 150} {
		got := f.Predict(X[i])
		if math.Abs(got-y[i]) > 1.0 {
			t.Fatalf("row %d: predicted %v, want about %v", i, got, y[i])
		}
	}
}

func TestForestDeterministic(t *testing.T) {
	X, y := linearData(120)
	cfg := DefaultForestConfig()
	cfg.Trees = 20

	cfg.Workers = 1
	a, err := FitForest(context.Background(), X, y, cfg)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	cfg.Workers = 6
	b, err := FitForest(context.Background(), X, y, cfg)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	for i := range X {
		if a.Predict(X[i]) != b.Predict(X[i]) {
			t.Fatalf("row %d: predictions differ across runs", i)
		}
	}
}

func TestForestJSONRoundTrip(t *testing.T) {
	X, y := linearData(80)
	cfg := DefaultForestConfig()
	cfg.Trees = 10
	f, err := FitForest(context.Background(), X, y, cfg)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	g, err := DecodeForest(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	sample := []float64{3.33, 1}
	if f.Predict(sample) != g.Predict(sample) {
		t.Fatalf("reloaded forest predicts %v, want %v", g.Predict(sample), f.Predict(sample))
	}
}

func TestForestConstantTarget(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{7, 7, 7, 7}
	f, err := FitForest(context.Background(), X, y, ForestConfig{Trees: 3, Seed: 1})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if got := f.Predict([]float64{10}); got != 7 {
		t.Fatalf("expected 7, got %v", got)
	}
	for _, tr := range f.Trees {
		if len(tr.Nodes) != 1 {
			t.Fatalf("constant target should give single-leaf trees, got %d nodes", len(tr.Nodes))
		}
	}
}

func TestFitForestRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	if _, err := FitForest(ctx, nil, nil, DefaultForestConfig()); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := FitForest(ctx, [][]float64{{1}, {2}}, []float64{1}, DefaultForestConfig()); err == nil {
		t.Fatalf("expected error for length mismatch")
	}
	if _, err := FitForest(ctx, [][]float64{{1, 2}, {3}}, []float64{1, 2}, DefaultForestConfig()); err == nil {
		t.Fatalf("expected error for ragged rows")
	}
}

func TestFitForestCancelled(t *testing.T) {
	X, y := linearData(50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := FitForest(ctx, X, y, DefaultForestConfig()); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestDecodeForestRejectsGarbage(t *testing.T) {
	if _, err := DecodeForest([]byte(`{"features":2,"trees":[]}`)); err == nil {
		t.Fatalf("expected error for empty forest")
	}
	if _, err := DecodeForest([]byte(`{"features":1,"trees":[{"nodes":[{"f":3,"v":1}]}]}`)); err == nil {
		t.Fatalf("expected error for out of range feature")
	}
}
