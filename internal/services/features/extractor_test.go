package features

import (
    "math"
    "testing"
    "time"

    "FinRank/internal/domain/models"
)

func makeBars(n int, closeAt func(i int) float64) []models.Bar {
    start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    bars := make([]models.Bar, n)
    for i := range bars {
        c := closeAt(i)
        bars[i] = models.Bar{
            Date:   start.AddDate(0, 0, i),
            Symbol: "TEST",
            Open:   c,
            High:   c * 1.01,
            Low:    c * 0.99,
            Close:  c,
            Volume: 1000 + float64(100*(i%7)),
        }
    }
    return bars
}

func wave(i int) float64 {
    return 100 + 10*math.Sin(float64(i)/5) + 0.3*float64(i)
}

func near(a, b, tol float64) bool {
    return math.Abs(a-b) <= tol
}

func TestDeriveRowCountAndDefined(t *testing.T) {
    for _, n := range []int{21, 60, 250} {
        rows := Derive(makeBars(n, wave))
        if len(rows) != n {
            t.Fatalf("n=%d: expected %d rows, got %d", n, n, len(rows))
        }
        for i, r := range rows {
            if !r.Valid() {
                t.Fatalf("n=%d: row %d has undefined values: %+v", n, i, r)
            }
        }
        if rows[n-1].Target != 0 {
            t.Fatalf("n=%d: last target should be 0, got %v", n, rows[n-1].Target)
        }
    }
}

func TestDeriveShortSeriesFallbacks(t *testing.T) {
    rows := Derive(makeBars(10, wave))
    if len(rows) != 10 {
        t.Fatalf("expected 10 rows, got %d", len(rows))
    }
    for i, r := range rows {
        if r.RSI != 50 || r.BollingerPosition != 0.5 || r.VolumeRatio != 1 {
            t.Fatalf("row %d: expected neutral fallbacks, got %+v", i, r)
        }
        if !math.IsNaN(r.Volatility) {
            t.Fatalf("row %d: volatility should be undefined, got %v", i, r.Volatility)
        }
        if r.Valid() {
            t.Fatalf("row %d: short series rows must not be usable", i)
        }
    }
    if X, _ := TrainingSamples(makeBars(10, wave)); len(X) != 0 {
        t.Fatalf("expected no training samples, got %d", len(X))
    }
}

func TestDeriveKnownValues(t *testing.T) {
    closes := []float64{10, 11, 9.9, 12}
    rows := Derive(makeBars(len(closes), func(i int) float64 { return closes[i] }))
    if rows[0].Returns != 0 {
        t.Fatalf("first return should be 0, got %v", rows[0].Returns)
    }
    if !near(rows[1].Returns, 0.1, 1e-12) || !near(rows[0].Target, 0.1, 1e-12) {
        t.Fatalf("unexpected returns/target: %v %v", rows[1].Returns, rows[0].Target)
    }
    if !near(rows[2].MaxDrawdown, 9.9/11-1, 1e-12) {
        t.Fatalf("unexpected drawdown %v", rows[2].MaxDrawdown)
    }
    if rows[3].MaxDrawdown != 0 {
        t.Fatalf("new high should have zero drawdown, got %v", rows[3].MaxDrawdown)
    }
    if rows[0].MACD != 0 {
        t.Fatalf("MACD starts at zero, got %v", rows[0].MACD)
    }
}

func TestDeriveScaleInvariance(t *testing.T) {
    const k = 3.7
    base := Derive(makeBars(80, wave))
    scaled := Derive(makeBars(80, func(i int) float64 { return k * wave(i) }))
    for i := range base {
        a, b := base[i], scaled[i]
        if !near(a.Volatility, b.Volatility, 1e-9) {
            t.Fatalf("row %d: volatility %v vs %v", i, a.Volatility, b.Volatility)
        }
        if !near(a.RSI, b.RSI, 1e-7) {
            t.Fatalf("row %d: rsi %v vs %v", i, a.RSI, b.RSI)
        }
        if !near(a.BollingerPosition, b.BollingerPosition, 1e-9) {
            t.Fatalf("row %d: bollinger %v vs %v", i, a.BollingerPosition, b.BollingerPosition)
        }
        if !near(k*a.MACD, b.MACD, 1e-7) {
            t.Fatalf("row %d: macd should scale linearly: %v vs %v", i, k*a.MACD, b.MACD)
        }
    }
}

func TestRSIExtremes(t *testing.T) {
    up := make([]float64, 30)
    flat := make([]float64, 30)
    for i := range up {
        up[i] = float64(100 + i)
        flat[i] = 100
    }
    rUp := RSI(up, RSIWindow)
    rFlat := RSI(flat, RSIWindow)
    for i := RSIWindow - 1; i < 30; i++ {
        if rUp[i] != 100 {
            t.Fatalf("rising series rsi[%d]=%v, want 100", i, rUp[i])
        }
        if rFlat[i] != 50 {
            t.Fatalf("flat series rsi[%d]=%v, want 50", i, rFlat[i])
        }
    }
    for i := 0; i < RSIWindow-1; i++ {
        if rUp[i] != 50 {
            t.Fatalf("warm-up rsi[%d]=%v, want 50", i, rUp[i])
        }
    }
}

func TestRiskRatiosZeroVariance(t *testing.T) {
    sharpe, sortino := RiskRatios(PctChange([]float64{5, 5, 5, 5, 5}))
    if sharpe != 0 || sortino != 0 {
        t.Fatalf("expected 0/0 for zero variance, got %v %v", sharpe, sortino)
    }
}

func TestRiskRatiosBroadcast(t *testing.T) {
    rows := Derive(makeBars(40, wave))
    for _, r := range rows[1:] {
        if r.SharpeRatio != rows[0].SharpeRatio || r.SortinoRatio != rows[0].SortinoRatio {
            t.Fatalf("ratios must be identical on every row")
        }
    }
}

func TestBackFill(t *testing.T) {
    nan := math.NaN()
    got := BackFill([]float64{nan, nan, 2, nan, 3, nan})
    want := []float64{2, 2, 2, 3, 3}
    for i, w := range want {
        if got[i] != w {
            t.Fatalf("index %d: got %v want %v", i, got[i], w)
        }
    }
    if !math.IsNaN(got[5]) {
        t.Fatalf("trailing NaN should stay, got %v", got[5])
    }
}

func TestTrainingSamplesExcludeLastRow(t *testing.T) {
    bars := makeBars(40, wave)
    X, y := TrainingSamples(bars)
    if len(X) != 39 || len(y) != 39 {
        t.Fatalf("expected 39 samples, got %d/%d", len(X), len(y))
    }
    if len(X[0]) != len(models.FeatureNames) {
        t.Fatalf("expected %d features, got %d", len(models.FeatureNames), len(X[0]))
    }
    if !near(y[0], bars[1].Close/bars[0].Close-1, 1e-12) {
        t.Fatalf("target of row 0 should be the next return, got %v", y[0])
    }
}
