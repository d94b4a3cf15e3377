package scoring

import (
	"math"
	"sort"

	"FinRank/internal/domain/models"
)

// DefaultTopN is how many recommendations a segment or merge returns.
const DefaultTopN = 5

// Signals are the per-symbol inputs to the risk-adjusted score.
type Signals struct {
	ExpectedReturn    float64
	Volatility        float64
	MaxDrawdown       float64
	SharpeRatio       float64
	SortinoRatio      float64
	RSI               float64
	MACD              float64
	BollingerPosition float64
}

// SignalsFrom combines a feature row with the model's predicted return.
func SignalsFrom(row models.FeatureRow, expectedReturn float64) Signals {
	return Signals{
		ExpectedReturn:    expectedReturn,
		Volatility:        row.Volatility,
		MaxDrawdown:       row.MaxDrawdown,
		SharpeRatio:       row.SharpeRatio,
		SortinoRatio:      row.SortinoRatio,
		RSI:               row.RSI,
		MACD:              row.MACD,
		BollingerPosition: row.BollingerPosition,
	}
}

func ReturnScore(expectedReturn float64) float64 {
	return expectedReturn * 2
}

// RiskScore weighs volatility by the investor's aversion (1-rt) and adds
// drawdown plus penalties for Sharpe and Sortino below 2.
func RiskScore(s Signals, riskTolerance float64) float64 {
	return s.Volatility*(1-riskTolerance) +
		math.Abs(s.MaxDrawdown)*0.5 +
		(1-(s.SharpeRatio+2)/4)*0.3 +
		(1-(s.SortinoRatio+2)/4)*0.2
}

// TechnicalScore rewards RSI in [50,70], positive MACD and a mid-band Bollinger position.
func TechnicalScore(s Signals) float64 {
	score := 0.0
	if s.RSI >= 50 && s.RSI <= 70 {
		score += 0.2
	}
	if s.MACD > 0 {
		score += 0.1
	}
	if s.BollingerPosition >= 0.3 && s.BollingerPosition <= 0.7 {
		score += 0.1
	}
	return score
}

// RiskAdjustedScore blends return, risk and technical components. Higher risk
// tolerance raises the return weight and lowers the risk weight. Non-finite
// results become negative infinity so they rank last.
func RiskAdjustedScore(s Signals, p models.RiskProfile) float64 {
	rt := p.RiskTolerance()
	final := ReturnScore(s.ExpectedReturn)*(0.5+0.2*rt) -
		RiskScore(s, rt)*(0.4-0.1*rt) +
		TechnicalScore(s)*0.1
	if math.IsNaN(final) || math.IsInf(final, 0) {
		return math.Inf(-1)
	}
	return final
}

// Project estimates holdings after the horizon. The expected return is a
// per-bar figure compounded once per month, and the value is monthly
// contribution times shares bought with one contribution; both are kept as
// an approximation rather than a portfolio simulation.
func Project(monthly, price, expectedReturn float64, months int) (shares, projected float64, ok bool) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, 0, false
	}
	shares = monthly / price
	projected = monthly * shares * math.Pow(1+expectedReturn, float64(months))
	return shares, projected, true
}

// Rank orders by score descending, keeping input order for ties, and keeps the top n.
func Rank(recs []models.Recommendation, n int) []models.Recommendation {
	out := make([]models.Recommendation, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RiskAdjustedScore > out[j].RiskAdjustedScore
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
