package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// RiskProfile is the investor input to scoring.
type RiskProfile struct {
	RiskToleranceScore       float64 `json:"risk_tolerance_score"`
	TargetAmount             float64 `json:"target_amount"`
	MonthlyInvestment        float64 `json:"monthly_investment"`
	InvestmentDurationMonths int     `json:"investment_duration"`
}

// RiskTolerance maps the 0-100 score onto 0-1.
func (p RiskProfile) RiskTolerance() float64 {
	return p.RiskToleranceScore / 100
}

type RiskMetrics struct {
	Volatility   float64 `json:"volatility"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
}

type TechnicalIndicators struct {
	RSI               float64 `json:"rsi"`
	MACD              float64 `json:"macd"`
	BollingerPosition float64 `json:"bollinger_position"`
	VolumeRatio       float64 `json:"volume_ratio"`
}

// Recommendation is one scored symbol.
type Recommendation struct {
	Symbol              string              `json:"symbol"`
	CurrentPrice        float64             `json:"current_price"`
	ExpectedReturn      float64             `json:"expected_return"`
	RiskMetrics         RiskMetrics         `json:"risk_metrics"`
	TechnicalIndicators TechnicalIndicators `json:"technical_indicators"`
	RiskAdjustedScore   float64             `json:"risk_adjusted_score"`
	SharesPossible      float64             `json:"shares_possible"`
	ProjectedValue      float64             `json:"projected_value"`
	MarketCapCategory   Segment             `json:"market_cap_category,omitempty"`
}

// MarshalJSON writes non-finite score and projection as null.
func (r Recommendation) MarshalJSON() ([]byte, error) {
	type plain Recommendation
	return json.Marshal(struct {
		plain
		RiskAdjustedScore *float64 `json:"risk_adjusted_score"`
		ProjectedValue    *float64 `json:"projected_value"`
	}{plain(r), finiteOrNil(r.RiskAdjustedScore), finiteOrNil(r.ProjectedValue)})
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Skip records a symbol or segment left out of a result, with the reason.
// Symbol is empty for segment-level skips.
type Skip struct {
	Segment Segment `json:"segment"`
	Symbol  string  `json:"symbol,omitempty"`
	Reason  string  `json:"reason"`
}

// RecommendationSet is one ranked answer for a profile.
type RecommendationSet struct {
	BatchID     uuid.UUID        `json:"batch_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Profile     RiskProfile      `json:"profile"`
	Items       []Recommendation `json:"recommendations"`
	Skips       []Skip           `json:"skipped,omitempty"`
}

// Skip reasons.
const (
	SkipFetchFailed         = "fetch_failed"
	SkipNoData              = "no_data"
	SkipInsufficientHistory = "insufficient_history"
	SkipInvalidFeatures     = "invalid_features"
	SkipBadPrediction       = "non_finite_prediction"
	SkipBadPrice            = "non_positive_price"
	SkipSegmentUntrained    = "segment_untrained"
	SkipSegmentFailed       = "segment_failed"
	SkipUnverified          = "unverified"
)
