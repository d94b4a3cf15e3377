package ml

import (
	"encoding/json"
	"math"
	"testing"
)

func TestScalerStandardises(t *testing.T) {
	X := [][]float64{{1, 5}, {2, 5}, {3, 5}, {4, 5}}
	s, err := FitScaler(X)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if s.Mean[0] != 2.5 || math.Abs(s.Scale[0]-math.Sqrt(1.25)) > 1e-12 {
		t.Fatalf("unexpected column 0 stats: %v %v", s.Mean[0], s.Scale[0])
	}
	if s.Scale[1] != 1 {
		t.Fatalf("constant column should keep scale 1, got %v", s.Scale[1])
	}
	Z := s.TransformAll(X)
	sum := 0.0
	for _, row := range Z {
		sum += row[0]
		if row[1] != 0 {
			t.Fatalf("constant column should map to 0, got %v", row[1])
		}
	}
	if math.Abs(sum) > 1e-12 {
		t.Fatalf("scaled column should have zero mean, got %v", sum)
	}
}

func TestScalerJSONRoundTrip(t *testing.T) {
	s, err := FitScaler([][]float64{{0.1, -3}, {0.7, 9}, {0.2, 4}})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	raw, _ := json.Marshal(s)
	r, err := DecodeScaler(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	x := []float64{0.5, 1}
	a, b := s.Transform(x), r.Transform(x)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("column %d: %v vs %v", i, a[i], b[i])
		}
	}
	if _, err := DecodeScaler([]byte(`{"mean":[1],"scale":[]}`)); err == nil {
		t.Fatalf("expected dimension error")
	}
}

func TestFitScalerEmpty(t *testing.T) {
	if _, err := FitScaler(nil); err == nil {
		t.Fatalf("expected error")
	}
}
