package features

import (
    "math"

    "gonum.org/v1/gonum/stat"

    "FinRank/internal/domain/models"
)

const (
    VolatilityWindow   = 20
    RSIWindow          = 14
    BollingerWindow    = 20
    BollingerWidth     = 2.0
    VolumeWindow       = 20
    MACDFastSpan       = 12
    MACDSlowSpan       = 26
    TradingDaysPerYear = 252

    neutralRSI       = 50.0
    neutralBollinger = 0.5
    neutralVolume    = 1.0
)

// Derive computes one FeatureRow per bar. Rolling statistics that cannot be
// computed fall back to neutral constants, except volatility which is
// back-filled from its first defined value and stays NaN when there is none.
func Derive(bars []models.Bar) []models.FeatureRow {
    n := len(bars)
    if n == 0 {
        return nil
    }
    closes := make([]float64, n)
    volumes := make([]float64, n)
    for i, b := range bars {
        closes[i] = b.Close
        volumes[i] = b.Volume
    }

    returns := PctChange(closes)
    volatility := BackFill(RollingStd(returns, VolatilityWindow))
    rsi := RSI(closes, RSIWindow)
    macd := MACD(closes, MACDFastSpan, MACDSlowSpan)
    bb := BollingerPosition(closes, BollingerWindow, BollingerWidth)
    vr := VolumeRatio(volumes, VolumeWindow)
    mdd := Drawdown(closes)
    sharpe, sortino := RiskRatios(returns)

    rows := make([]models.FeatureRow, n)
    for i := 0; i < n; i++ {
        target := 0.0
        if i+1 < n {
            target = orDefault(returns[i+1], 0)
        }
        rows[i] = models.FeatureRow{
            Returns:           orDefault(returns[i], 0),
            Volatility:        volatility[i],
            RSI:               rsi[i],
            MACD:              orDefault(macd[i], 0),
            BollingerPosition: bb[i],
            VolumeRatio:       vr[i],
            MaxDrawdown:       orDefault(mdd[i], 0),
            SharpeRatio:       sharpe,
            SortinoRatio:      sortino,
            Target:            target,
        }
    }
    return rows
}

// Latest returns the inference row (the last bar's features).
func Latest(bars []models.Bar) (models.FeatureRow, bool) {
    rows := Derive(bars)
    if len(rows) == 0 {
        return models.FeatureRow{}, false
    }
    return rows[len(rows)-1], true
}

// TrainingSamples returns feature vectors and next-period targets for every bar
// except the last, dropping rows with undefined values.
func TrainingSamples(bars []models.Bar) ([][]float64, []float64) {
    rows := Derive(bars)
    if len(rows) < 2 {
        return nil, nil
    }
    X := make([][]float64, 0, len(rows)-1)
    y := make([]float64, 0, len(rows)-1)
    for _, r := range rows[:len(rows)-1] {
        if !r.Valid() || !finite(r.Target) {
            continue
        }
        X = append(X, r.Vector())
        y = append(y, r.Target)
    }
    return X, y
}

// PctChange returns x[t]/x[t-1]-1 with NaN at index 0.
func PctChange(x []float64) []float64 {
    out := make([]float64, len(x))
    for i := range x {
        if i == 0 {
            out[i] = math.NaN()
            continue
        }
        out[i] = x[i]/x[i-1] - 1
    }
    return out
}

// RollingStd is the sample standard deviation over a trailing window.
// A window containing any NaN yields NaN.
func RollingStd(x []float64, window int) []float64 {
    return rolling(x, window, func(w []float64) float64 { return stat.StdDev(w, nil) })
}

// RollingMean is the mean over a trailing window.
func RollingMean(x []float64, window int) []float64 {
    return rolling(x, window, func(w []float64) float64 { return stat.Mean(w, nil) })
}

func rolling(x []float64, window int, fn func([]float64) float64) []float64 {
    out := make([]float64, len(x))
    for i := range x {
        if i+1 < window {
            out[i] = math.NaN()
            continue
        }
        w := x[i+1-window : i+1]
        if hasNaN(w) {
            out[i] = math.NaN()
            continue
        }
        out[i] = fn(w)
    }
    return out
}

// BackFill replaces NaNs with the next defined value. Trailing NaNs stay.
func BackFill(x []float64) []float64 {
    out := make([]float64, len(x))
    next := math.NaN()
    for i := len(x) - 1; i >= 0; i-- {
        if !math.IsNaN(x[i]) {
            next = x[i]
        }
        if math.IsNaN(x[i]) {
            out[i] = next
        } else {
            out[i] = x[i]
        }
    }
    return out
}

// RSI is the simple-moving-average relative strength index. The first delta
// counts as zero movement. Undefined values are 50.
func RSI(closes []float64, window int) []float64 {
    n := len(closes)
    gains := make([]float64, n)
    losses := make([]float64, n)
    for i := 1; i < n; i++ {
        d := closes[i] - closes[i-1]
        if d > 0 {
            gains[i] = d
        } else if d < 0 {
            losses[i] = -d
        }
    }
    avgGain := RollingMean(gains, window)
    avgLoss := RollingMean(losses, window)

    out := make([]float64, n)
    for i := range out {
        g, l := avgGain[i], avgLoss[i]
        switch {
        case math.IsNaN(g) || math.IsNaN(l):
            out[i] = neutralRSI
        case l == 0 && g == 0:
            out[i] = neutralRSI
        case l == 0:
            out[i] = 100
        default:
            out[i] = 100 - 100/(1+g/l)
        }
    }
    return out
}

// EMA is the recursive exponential moving average seeded with x[0],
// alpha = 2/(span+1).
func EMA(x []float64, span int) []float64 {
    out := make([]float64, len(x))
    if len(x) == 0 {
        return out
    }
    alpha := 2.0 / (float64(span) + 1)
    out[0] = x[0]
    for i := 1; i < len(x); i++ {
        out[i] = alpha*x[i] + (1-alpha)*out[i-1]
    }
    return out
}

// MACD returns EMA(fast) - EMA(slow).
func MACD(closes []float64, fast, slow int) []float64 {
    f := EMA(closes, fast)
    s := EMA(closes, slow)
    out := make([]float64, len(closes))
    for i := range out {
        out[i] = f[i] - s[i]
    }
    return out
}

// BollingerPosition locates the close within mean +/- width*std bands.
// It is not clamped; undefined values are 0.5.
func BollingerPosition(closes []float64, window int, width float64) []float64 {
    mid := RollingMean(closes, window)
    sd := RollingStd(closes, window)
    out := make([]float64, len(closes))
    for i := range out {
        upper := mid[i] + width*sd[i]
        lower := mid[i] - width*sd[i]
        out[i] = orDefault((closes[i]-lower)/(upper-lower), neutralBollinger)
    }
    return out
}

// VolumeRatio is volume over its trailing mean; undefined values are 1.
func VolumeRatio(volumes []float64, window int) []float64 {
    avg := RollingMean(volumes, window)
    out := make([]float64, len(volumes))
    for i := range out {
        out[i] = orDefault(volumes[i]/avg[i], neutralVolume)
    }
    return out
}

// Drawdown is close over its running maximum minus one (<= 0).
func Drawdown(closes []float64) []float64 {
    out := make([]float64, len(closes))
    peak := math.Inf(-1)
    for i, c := range closes {
        if c > peak {
            peak = c
        }
        out[i] = c/peak - 1
    }
    return out
}

// RiskRatios returns annualised Sharpe and Sortino ratios over the defined
// returns of the whole series. The Sortino denominator is the standard
// deviation of returns with negative values replaced by zero. Non-finite
// results are 0.
func RiskRatios(returns []float64) (sharpe, sortino float64) {
    defined := make([]float64, 0, len(returns))
    for _, r := range returns {
        if !math.IsNaN(r) {
            defined = append(defined, r)
        }
    }
    if len(defined) < 2 {
        return 0, 0
    }
    mean := stat.Mean(defined, nil)
    annual := math.Sqrt(TradingDaysPerYear)

    sharpe = orDefault(mean/stat.StdDev(defined, nil)*annual, 0)

    clamped := make([]float64, len(defined))
    for i, r := range defined {
        clamped[i] = math.Max(r, 0)
    }
    sortino = orDefault(mean/stat.StdDev(clamped, nil)*annual, 0)
    return sharpe, sortino
}

func hasNaN(x []float64) bool {
    for _, v := range x {
        if math.IsNaN(v) {
            return true
        }
    }
    return false
}

func finite(v float64) bool {
    return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func orDefault(v, def float64) float64 {
    if !finite(v) {
        return def
    }
    return v
}
