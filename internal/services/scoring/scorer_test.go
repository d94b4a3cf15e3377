package scoring

import (
	"math"
	"testing"

	"FinRank/internal/domain/models"
)

func baseSignals() Signals {
	return Signals{
		ExpectedReturn:    0.01,
		Volatility:        0.02,
		MaxDrawdown:       -0.1,
		SharpeRatio:       1,
		SortinoRatio:      1.5,
		RSI:               60,
		MACD:              0.5,
		BollingerPosition: 0.5,
	}
}

func TestRiskAdjustedScoreKnownValue(t *testing.T) {
	s := baseSignals()
	p := models.RiskProfile{RiskToleranceScore: 50}
	// rt=0.5: return 0.02*0.6, risk (0.01+0.05+0.075+0.025)*0.35, tech 0.4*0.1
	want := 0.02*0.6 - (0.01+0.05+0.075+0.025)*0.35 + 0.04
	if got := RiskAdjustedScore(s, p); math.Abs(got-want) > 1e-12 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTechnicalScoreBands(t *testing.T) {
	cases := []struct {
		rsi, macd, bb float64
		want          float64
	}{
		{60, 1, 0.5, 0.4},
		{50, 0, 0.3, 0.3},
		{70, -1, 0.7, 0.3},
		{71, 1, 0.2, 0.1},
		{49.9, 0, 0.71, 0},
	}
	for _, c := range cases {
		got := TechnicalScore(Signals{RSI: c.rsi, MACD: c.macd, BollingerPosition: c.bb})
		if math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("rsi=%v macd=%v bb=%v: got %v want %v", c.rsi, c.macd, c.bb, got, c.want)
		}
	}
}

func TestScoreMonotonicInExpectedReturn(t *testing.T) {
	p := models.RiskProfile{RiskToleranceScore: 30}
	s := baseSignals()
	prev := math.Inf(-1)
	for er := -0.05; er <= 0.05; er += 0.005 {
		s.ExpectedReturn = er
		got := RiskAdjustedScore(s, p)
		if got < prev {
			t.Fatalf("score decreased at er=%v: %v < %v", er, got, prev)
		}
		prev = got
	}
}

func TestRiskWeightDecreasesWithTolerance(t *testing.T) {
	s := baseSignals()
	s.ExpectedReturn = 0
	s.MACD = -1
	s.RSI = 10
	s.BollingerPosition = 0.9
	// With zero return and no technical credit the score is -risk*(0.4-0.1rt),
	// and risk itself shrinks as rt grows, so the penalty must shrink.
	prev := math.Inf(-1)
	for rts := 0.0; rts <= 100; rts += 10 {
		got := RiskAdjustedScore(s, models.RiskProfile{RiskToleranceScore: rts})
		if got < prev {
			t.Fatalf("penalty grew at rts=%v: %v < %v", rts, got, prev)
		}
		prev = got
	}
}

func TestRiskAdjustedScoreNonFinite(t *testing.T) {
	s := baseSignals()
	s.Volatility = math.NaN()
	if got := RiskAdjustedScore(s, models.RiskProfile{RiskToleranceScore: 50}); !math.IsInf(got, -1) {
		t.Fatalf("expected -Inf, got %v", got)
	}
}

func TestProject(t *testing.T) {
	shares, projected, ok := Project(50000, 2500, 0.001, 60)
	if !ok || shares != 20 {
		t.Fatalf("unexpected shares %v ok=%v", shares, ok)
	}
	want := 50000 * 20 * math.Pow(1.001, 60)
	if math.Abs(projected-want) > 1e-6 {
		t.Fatalf("got %v want %v", projected, want)
	}
	if _, _, ok := Project(50000, 0, 0.01, 12); ok {
		t.Fatalf("zero price must not project")
	}
}

func TestRankStableTopN(t *testing.T) {
	var recs []models.Recommendation
	scores := []float64{0.1, 0.5, 0.5, math.Inf(-1), 0.3, 0.5, 0.2}
	for i, s := range scores {
		recs = append(recs, models.Recommendation{Symbol: string(rune('A' + i)), RiskAdjustedScore: s})
	}
	got := Rank(recs, 5)
	want := []string{"B", "C", "F", "E", "G"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Symbol != want[i] {
			t.Fatalf("position %d: got %s want %s", i, got[i].Symbol, want[i])
		}
	}
	if recs[0].Symbol != "A" {
		t.Fatalf("input must not be reordered")
	}
}
