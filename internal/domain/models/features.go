package models

import "math"

// FeatureNames is the model input column order.
var FeatureNames = []string{
	"returns",
	"volatility",
	"rsi",
	"macd",
	"bollinger_position",
	"volume_ratio",
	"max_drawdown",
	"sharpe_ratio",
	"sortino_ratio",
}

// FeatureRow holds the derived features for one bar and the next-period return.
type FeatureRow struct {
	Returns           float64
	Volatility        float64
	RSI               float64
	MACD              float64
	BollingerPosition float64
	VolumeRatio       float64
	MaxDrawdown       float64
	SharpeRatio       float64
	SortinoRatio      float64

	Target float64
}

// Vector returns the features in FeatureNames order.
func (r FeatureRow) Vector() []float64 {
	return []float64{
		r.Returns,
		r.Volatility,
		r.RSI,
		r.MACD,
		r.BollingerPosition,
		r.VolumeRatio,
		r.MaxDrawdown,
		r.SharpeRatio,
		r.SortinoRatio,
	}
}

// Valid reports whether every feature is finite.
func (r FeatureRow) Valid() bool {
	for _, v := range r.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
