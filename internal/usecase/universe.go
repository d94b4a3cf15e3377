package usecase

import (
	"context"
	"errors"
	"time"

	"FinRank/internal/domain/models"
	"FinRank/pkg/cache"
	applogger "FinRank/pkg/logger"
)

// UniverseCacheKey is where the discovered universe is cached.
var UniverseCacheKey = cache.GenerateKey("universe", "stocks")

// DefaultUniverse is used when no segments are configured.
var DefaultUniverse = map[models.Segment][]string{
	models.LargeCap: {
		"RELIANCE.NS", "INFY.NS", "ICICIBANK.NS", "HINDUNILVR.NS", "SBIN.NS",
		"BHARTIARTL.NS", "ITC.NS", "KOTAKBANK.NS", "LT.NS", "AXISBANK.NS",
		"MARUTI.NS", "HCLTECH.NS", "ASIANPAINT.NS", "TATASTEEL.NS", "WIPRO.NS",
	},
	models.MidCap: {
		"INDHOTEL.NS", "FEDERALBNK.NS", "SAIL.NS", "GODREJPROP.NS", "TATAPOWER.NS",
		"APOLLOTYRE.NS", "CANBK.NS", "NMDC.NS", "ESCORTS.NS", "MINDTREE.NS",
	},
	models.SmallCap: {
		"TRIDENT.NS", "SUZLON.NS", "RPOWER.NS", "IDEA.NS", "PNB.NS",
		"YESBANK.NS", "IBULHSGFIN.NS", "DELTACORP.NS", "GMRINFRA.NS", "IBREALEST.NS",
	},
}

// FallbackUniverse is the short list served when discovery fails.
var FallbackUniverse = map[models.Segment][]string{
	models.LargeCap: {"RELIANCE.NS", "INFY.NS", "ICICIBANK.NS", "HINDUNILVR.NS", "SBIN.NS"},
	models.MidCap:   {"INDHOTEL.NS", "FEDERALBNK.NS", "SAIL.NS", "TATAPOWER.NS", "APOLLOTYRE.NS"},
	models.SmallCap: {"TRIDENT.NS", "SUZLON.NS", "PNB.NS", "YESBANK.NS", "DELTACORP.NS"},
}

// Universe discovers the segment to symbol mapping and caches it for ttl.
type Universe struct {
	cache      cache.Service
	ttl        time.Duration
	configured map[models.Segment][]string
	l          *applogger.Logger
	now        func() time.Time
}

// NewUniverse uses configured when it names at least one known segment,
// otherwise DefaultUniverse.
func NewUniverse(c cache.Service, ttl time.Duration, configured map[string][]string, l *applogger.Logger) *Universe {
	table := make(map[models.Segment][]string)
	for name, syms := range configured {
		seg := models.Segment(name)
		if !seg.Valid() {
			l.Warn("ignoring unknown segment in universe config", applogger.String("segment", name))
			continue
		}
		table[seg] = syms
	}
	if len(table) == 0 {
		table = DefaultUniverse
	}
	return &Universe{cache: c, ttl: ttl, configured: table, l: l, now: time.Now}
}

// Discover returns the cached universe while it is fresh, otherwise rebuilds
// and caches it. A cache that cannot be read yields FallbackUniverse.
func (u *Universe) Discover(ctx context.Context) models.StockUniverse {
	var cached models.StockUniverse
	err := u.cache.Get(ctx, UniverseCacheKey, &cached)
	switch {
	case err == nil && u.now().Sub(cached.Timestamp) < u.ttl && len(cached.Stocks) > 0:
		u.l.Debug("using cached stock universe", applogger.String("cached_at", cached.Timestamp.Format(time.RFC3339)))
		return cached
	case err != nil && !errors.Is(err, cache.ErrCacheMiss):
		u.l.Error("read stock universe failed, using fallback list", applogger.Error(err))
		return u.fallback()
	}

	fresh := models.StockUniverse{Timestamp: u.now().UTC(), Stocks: copyTable(u.configured)}
	if err := u.cache.Set(ctx, UniverseCacheKey, fresh, u.ttl); err != nil {
		u.l.Warn("cache stock universe failed", applogger.Error(err))
	}
	u.l.Info("stock universe rebuilt",
		applogger.Int("large_cap", len(fresh.Stocks[models.LargeCap])),
		applogger.Int("mid_cap", len(fresh.Stocks[models.MidCap])),
		applogger.Int("small_cap", len(fresh.Stocks[models.SmallCap])),
	)
	return fresh
}

// CategoryOf returns the segment listing symbol, or UnknownSegment.
func (u *Universe) CategoryOf(ctx context.Context, symbol string) models.Segment {
	return u.Discover(ctx).Category(symbol)
}

// Invalidate drops the cached universe so the next Discover rebuilds it.
func (u *Universe) Invalidate(ctx context.Context) error {
	return u.cache.Delete(ctx, UniverseCacheKey)
}

func (u *Universe) fallback() models.StockUniverse {
	return models.StockUniverse{Timestamp: u.now().UTC(), Stocks: copyTable(FallbackUniverse)}
}

func copyTable(t map[models.Segment][]string) map[models.Segment][]string {
	out := make(map[models.Segment][]string, len(t))
	for k, v := range t {
		out[k] = append([]string(nil), v...)
	}
	return out
}
