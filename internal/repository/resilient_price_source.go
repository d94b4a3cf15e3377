package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/util"
)

// BreakerSettings configures the primary source circuit breaker.
type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// ResilientPriceSource calls the primary through a circuit breaker and falls
// back to the secondary when the call fails or the breaker is open. Bars
// fetched from the primary are copied to the archive when one is set.
type ResilientPriceSource struct {
	primary  domrepo.PriceSource
	fallback domrepo.PriceSource
	archive  domrepo.BarArchive
	cb       *gobreaker.CircuitBreaker[[]models.Bar]
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewResilientPriceSource(
	primary, fallback domrepo.PriceSource,
	archive domrepo.BarArchive,
	settings BreakerSettings,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *ResilientPriceSource {
	if l == nil {
		l = applogger.Nop()
	}
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	s := &ResilientPriceSource{
		primary:  primary,
		fallback: fallback,
		archive:  archive,
		metrics:  metrics,
		l:        l,
	}
	s.cb = gobreaker.NewCircuitBreaker[[]models.Bar](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		// A symbol with no bars is an answer, not a provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, models.ErrNoBars)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("price source breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	})
	return s
}

func (s *ResilientPriceSource) History(ctx context.Context, symbol string, period util.Period) ([]models.Bar, error) {
	bars, err := s.cb.Execute(func() ([]models.Bar, error) {
		return s.primary.History(ctx, symbol, period)
	})
	if err == nil {
		s.archiveBars(ctx, symbol, bars)
		return bars, nil
	}
	if errors.Is(err, models.ErrNoBars) || s.fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordError("price_source_fallback")
	}
	s.l.Warn("primary price source failed, using fallback",
		applogger.String("symbol", symbol),
		applogger.String("breaker_state", s.cb.State().String()),
		applogger.Error(err),
	)
	fb, ferr := s.fallback.History(ctx, symbol, period)
	if ferr != nil {
		return nil, fmt.Errorf("primary: %v; fallback: %w", err, ferr)
	}
	return fb, nil
}

// State exposes the breaker state for status endpoints.
func (s *ResilientPriceSource) State() string {
	return s.cb.State().String()
}

func (s *ResilientPriceSource) archiveBars(ctx context.Context, symbol string, bars []models.Bar) {
	if s.archive == nil || len(bars) == 0 {
		return
	}
	if err := s.archive.StoreBars(ctx, bars); err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("bar_archive")
		}
		s.l.Warn("archive bars failed", applogger.String("symbol", symbol), applogger.Error(err))
	}
}

var _ domrepo.PriceSource = (*ResilientPriceSource)(nil)
