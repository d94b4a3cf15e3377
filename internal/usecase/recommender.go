package usecase

import (
	"math"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	"FinRank/internal/services/features"
	"FinRank/internal/services/scoring"
	applogger "FinRank/pkg/logger"
)

// Recommender scores one segment model's cached symbols for a profile.
type Recommender struct {
	topN    int
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewRecommender(topN int, metrics domrepo.Metrics, l *applogger.Logger) *Recommender {
	if topN <= 0 {
		topN = scoring.DefaultTopN
	}
	return &Recommender{topN: topN, metrics: metrics, l: l}
}

// Recommend returns the segment's best candidates. Symbols that cannot be
// scored come back as skips; only an untrained or empty model is an error.
func (r *Recommender) Recommend(m *SegmentModel, p models.RiskProfile) ([]models.Recommendation, []models.Skip, error) {
	if !m.Trained() || len(m.Prices) == 0 {
		return nil, nil, models.ErrNotTrained
	}

	var recs []models.Recommendation
	var skips []models.Skip
	skip := func(sym, reason string) {
		skips = append(skips, models.Skip{Segment: m.Segment, Symbol: sym, Reason: reason})
		if r.metrics != nil {
			r.metrics.RecordSkip(string(m.Segment), reason)
		}
		r.l.Debug("symbol skipped",
			applogger.String("segment", string(m.Segment)),
			applogger.String("symbol", sym),
			applogger.String("reason", reason),
		)
	}

	for _, sym := range m.Symbols() {
		bars := m.Prices[sym]
		row, ok := features.Latest(bars)
		if !ok {
			skip(sym, models.SkipNoData)
			continue
		}
		if !row.Valid() {
			if len(bars) <= features.VolatilityWindow {
				skip(sym, models.SkipInsufficientHistory)
			} else {
				skip(sym, models.SkipInvalidFeatures)
			}
			continue
		}
		price := models.LastClose(bars)
		if !(price > 0) || math.IsInf(price, 0) {
			skip(sym, models.SkipBadPrice)
			continue
		}
		er := m.Regressor.Predict(m.Scaler.Transform(row.Vector()))
		if math.IsNaN(er) || math.IsInf(er, 0) {
			skip(sym, models.SkipBadPrediction)
			continue
		}

		score := scoring.RiskAdjustedScore(scoring.SignalsFrom(row, er), p)
		shares, projected, _ := scoring.Project(p.MonthlyInvestment, price, er, p.InvestmentDurationMonths)
		if r.metrics != nil {
			r.metrics.RecordScore(string(m.Segment), sym, score)
		}
		recs = append(recs, models.Recommendation{
			Symbol:         sym,
			CurrentPrice:   price,
			ExpectedReturn: er,
			RiskMetrics: models.RiskMetrics{
				Volatility:   row.Volatility,
				SharpeRatio:  row.SharpeRatio,
				SortinoRatio: row.SortinoRatio,
				MaxDrawdown:  row.MaxDrawdown,
			},
			TechnicalIndicators: models.TechnicalIndicators{
				RSI:               row.RSI,
				MACD:              row.MACD,
				BollingerPosition: row.BollingerPosition,
				VolumeRatio:       row.VolumeRatio,
			},
			RiskAdjustedScore: score,
			SharesPossible:    shares,
			ProjectedValue:    projected,
			MarketCapCategory: m.Segment,
		})
	}
	return scoring.Rank(recs, r.topN), skips, nil
}
