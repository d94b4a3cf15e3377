package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/util"
)

// AlpacaOptions configures AlpacaPriceSource.
type AlpacaOptions struct {
	APIKey            string
	APISecret         string
	BaseURL           string
	Feed              string
	RequestsPerSecond float64
	Burst             int
	// SymbolSuffix is trimmed from symbols before querying (".NS").
	SymbolSuffix string
}

// AlpacaPriceSource fetches split and dividend adjusted daily bars from Alpaca.
type AlpacaPriceSource struct {
	client  *marketdata.Client
	limiter *rate.Limiter
	feed    string
	suffix  string
	l       *applogger.Logger
	now     func() time.Time
}

func NewAlpacaPriceSource(opts AlpacaOptions, l *applogger.Logger) *AlpacaPriceSource {
	if l == nil {
		l = applogger.Nop()
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.BaseURL,
	})
	return &AlpacaPriceSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		feed:    opts.Feed,
		suffix:  opts.SymbolSuffix,
		l:       l,
		now:     time.Now,
	}
}

func (s *AlpacaPriceSource) History(ctx context.Context, symbol string, period util.Period) ([]models.Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("alpaca rate limit: %w", err)
	}
	end := s.now().UTC()
	ticker := strings.TrimSuffix(symbol, s.suffix)

	start := time.Now()
	bars, err := s.client.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      period.Start(end),
		End:        end,
		Feed:       marketdata.Feed(s.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", ticker, err)
	}
	s.l.Debug("alpaca bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	if len(bars) == 0 {
		return nil, models.ErrNoBars
	}

	out := make([]models.Bar, len(bars))
	for i, b := range bars {
		out[i] = models.Bar{
			Date:   b.Timestamp.UTC(),
			Symbol: symbol,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		}
	}
	return out, nil
}

var _ domrepo.PriceSource = (*AlpacaPriceSource)(nil)
