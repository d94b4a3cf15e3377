package models

// Requests for recommendation HTTP endpoints.

type RecommendationRequest struct {
	RiskToleranceScore *float64 `json:"risk_tolerance_score" validate:"required,gte=0,lte=100"`
	TargetAmount       float64  `json:"target_amount" default:"1000000" validate:"gt=0"`
	MonthlyInvestment  float64  `json:"monthly_investment" default:"50000" validate:"gt=0"`
	InvestmentDuration int      `json:"investment_duration" default:"60" validate:"gte=1,lte=600"`
}

// Profile converts the request into a RiskProfile.
func (r *RecommendationRequest) Profile() RiskProfile {
	var rts float64
	if r.RiskToleranceScore != nil {
		rts = *r.RiskToleranceScore
	}
	return RiskProfile{
		RiskToleranceScore:       rts,
		TargetAmount:             r.TargetAmount,
		MonthlyInvestment:        r.MonthlyInvestment,
		InvestmentDurationMonths: r.InvestmentDuration,
	}
}

type RetrainRequest struct {
	Force       bool   `json:"force"`
	RequestedBy string `json:"requested_by" default:"api"`
}
