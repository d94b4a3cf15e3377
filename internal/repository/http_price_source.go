package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	xhttp "FinRank/pkg/http"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/util"
)

// HTTPPriceSource reads daily bars from a JSON bars service:
//
//	GET {base}/v1/bars?symbol=RELIANCE&period=1y
//	{"symbol":"RELIANCE","bars":[{"date":"2024-01-02T00:00:00Z","open":1,...}]}
type HTTPPriceSource struct {
	baseURL string
	suffix  string
	client  *xhttp.Client
	l       *applogger.Logger
}

type barsResponse struct {
	Symbol string       `json:"symbol"`
	Bars   []models.Bar `json:"bars"`
}

func NewHTTPPriceSource(baseURL, symbolSuffix string, client *xhttp.Client, l *applogger.Logger) *HTTPPriceSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &HTTPPriceSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		suffix:  symbolSuffix,
		client:  client,
		l:       l,
	}
}

func (s *HTTPPriceSource) History(ctx context.Context, symbol string, period util.Period) ([]models.Bar, error) {
	start := time.Now()
	ticker := strings.TrimSuffix(symbol, s.suffix)
	var resp barsResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.baseURL + "/v1/bars",
		QueryParams: map[string][]string{
			"symbol": {ticker},
			"period": {period.String()},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("bars service %s: %w", ticker, err)
	}
	s.l.Debug("bars service ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(resp.Bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	if len(resp.Bars) == 0 {
		return nil, models.ErrNoBars
	}
	for i := range resp.Bars {
		resp.Bars[i].Symbol = symbol
	}
	return resp.Bars, nil
}

var _ domrepo.PriceSource = (*HTTPPriceSource)(nil)
