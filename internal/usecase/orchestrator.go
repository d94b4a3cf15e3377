package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	"FinRank/internal/services/scoring"
	"FinRank/pkg/cache"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/util"
)

type OrchestratorConfig struct {
	VerifyPeriod   util.Period
	MinHistoryDays int
	MinSymbols     int
	LockTTL        time.Duration
	RetrainTimeout time.Duration
	TopN           int
}

// RetrainOptions controls one full retrain run.
type RetrainOptions struct {
	RunID       uuid.UUID
	Force       bool
	RequestedBy string
}

// Orchestrator runs scoring and training across the three segments.
type Orchestrator struct {
	registry    *Registry
	recommender *Recommender
	trainer     *Trainer
	universe    *Universe
	locks       cache.Service
	source      domrepo.PriceSource
	metrics     domrepo.Metrics
	cfg         OrchestratorConfig
	l           *applogger.Logger
	now         func() time.Time

	running atomic.Bool
	bg      sync.WaitGroup
}

func NewOrchestrator(
	registry *Registry,
	recommender *Recommender,
	trainer *Trainer,
	universe *Universe,
	locks cache.Service,
	source domrepo.PriceSource,
	metrics domrepo.Metrics,
	cfg OrchestratorConfig,
	l *applogger.Logger,
) *Orchestrator {
	if cfg.TopN <= 0 {
		cfg.TopN = scoring.DefaultTopN
	}
	if cfg.MinSymbols <= 0 {
		cfg.MinSymbols = 5
	}
	if cfg.MinHistoryDays <= 0 {
		cfg.MinHistoryDays = 20
	}
	return &Orchestrator{
		registry:    registry,
		recommender: recommender,
		trainer:     trainer,
		universe:    universe,
		locks:       locks,
		source:      source,
		metrics:     metrics,
		cfg:         cfg,
		l:           l,
		now:         time.Now,
	}
}

// Recommend scores every trained segment and returns the global top N.
// Untrained segments are skipped; it fails only when nothing could be scored.
func (o *Orchestrator) Recommend(ctx context.Context, p models.RiskProfile) ([]models.Recommendation, []models.Skip, error) {
	start := time.Now()
	var all []models.Recommendation
	var skips []models.Skip

	for _, seg := range models.Segments {
		if err := ctx.Err(); err != nil {
			return nil, skips, err
		}
		m, ok := o.registry.Get(seg)
		if !ok {
			o.l.Warn("segment not trained, skipping", applogger.String("segment", string(seg)))
			skips = append(skips, models.Skip{Segment: seg, Reason: models.SkipSegmentUntrained})
			continue
		}
		recs, symSkips, err := o.recommender.Recommend(m, p)
		skips = append(skips, symSkips...)
		if err != nil {
			o.l.Warn("segment scoring failed", applogger.String("segment", string(seg)), applogger.Error(err))
			skips = append(skips, models.Skip{Segment: seg, Reason: models.SkipSegmentFailed})
			continue
		}
		all = append(all, recs...)
	}

	if o.metrics != nil {
		o.metrics.RecordLatency("recommend", time.Since(start).Seconds())
	}
	if len(all) == 0 {
		return nil, skips, models.ErrNoRecommendations
	}
	return scoring.Rank(all, o.cfg.TopN), skips, nil
}

// Status reports every segment's live model.
func (o *Orchestrator) Status() []models.SegmentStatus {
	return o.registry.Status()
}

// Universe returns the current segment to symbol mapping.
func (o *Orchestrator) Universe(ctx context.Context) models.StockUniverse {
	return o.universe.Discover(ctx)
}

// CategoryOf returns the segment listing symbol, or UnknownSegment.
func (o *Orchestrator) CategoryOf(ctx context.Context, symbol string) models.Segment {
	return o.universe.CategoryOf(ctx, symbol)
}

// RetrainAll discovers the universe, verifies each segment's symbols and
// trains every segment with enough of them. It fails only when no segment
// trained. Runs in this process never overlap.
func (o *Orchestrator) RetrainAll(ctx context.Context, opts RetrainOptions) (*models.RetrainReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, models.ErrRetrainInProgress
	}
	defer o.running.Store(false)
	return o.retrain(ctx, opts)
}

// RetrainAsync starts RetrainAll in the background and returns its run id.
func (o *Orchestrator) RetrainAsync(opts RetrainOptions) (uuid.UUID, error) {
	if !o.running.CompareAndSwap(false, true) {
		return uuid.Nil, models.ErrRetrainInProgress
	}
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		defer o.running.Store(false)
		ctx := context.Background()
		if o.cfg.RetrainTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.cfg.RetrainTimeout)
			defer cancel()
		}
		if _, err := o.retrain(ctx, opts); err != nil {
			o.l.Error("background retrain failed", applogger.String("run_id", opts.RunID.String()), applogger.Error(err))
		}
	}()
	return opts.RunID, nil
}

// Wait blocks until background retrains finish or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) retrain(ctx context.Context, opts RetrainOptions) (*models.RetrainReport, error) {
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}
	report := &models.RetrainReport{RunID: opts.RunID, StartedAt: o.now().UTC()}
	log := o.l.With(applogger.String("run_id", opts.RunID.String()))
	log.Info("retrain started", applogger.Bool("force", opts.Force), applogger.String("requested_by", opts.RequestedBy))

	if opts.Force {
		// A forced run rediscovers instead of trusting the cached table.
		if err := o.universe.Invalidate(ctx); err != nil {
			log.Warn("invalidate stock universe failed", applogger.Error(err))
		}
	}
	u := o.universe.Discover(ctx)
	for _, seg := range models.Segments {
		if err := ctx.Err(); err != nil {
			report.Segments = append(report.Segments, models.SegmentRetrainResult{Segment: seg, Error: err.Error()})
			continue
		}
		report.Segments = append(report.Segments, o.retrainSegment(ctx, seg, u.Stocks[seg], opts.Force, log))
	}
	report.FinishedAt = o.now().UTC()

	trained := report.TrainedCount()
	if o.metrics != nil {
		o.metrics.RecordLatency("retrain_all", report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
	if trained == 0 {
		if o.metrics != nil {
			o.metrics.RecordError("retrain_failed")
		}
		log.Error("retrain trained no segment")
		return report, models.ErrNoSegmentsTrained
	}
	log.Info("retrain finished",
		applogger.Int("trained", trained),
		applogger.Int("segments", len(report.Segments)),
	)
	return report, nil
}

func (o *Orchestrator) retrainSegment(ctx context.Context, seg models.Segment, candidates []string, force bool, log *applogger.Logger) models.SegmentRetrainResult {
	res := models.SegmentRetrainResult{Segment: seg, Verified: []string{}}
	log = log.With(applogger.String("segment", string(seg)))

	verified, skips := o.Verify(ctx, seg, candidates)
	res.Verified = verified
	res.Skipped = skips
	if len(verified) < o.cfg.MinSymbols {
		err := fmt.Errorf("%s: %w: need %d, got %d", seg, models.ErrInsufficientSymbols, o.cfg.MinSymbols, len(verified))
		log.Error("insufficient verified symbols, skipping segment",
			applogger.Int("verified", len(verified)),
			applogger.Int("required", o.cfg.MinSymbols),
		)
		res.Error = err.Error()
		return res
	}

	lockKey := cache.GenerateKey("retrain", string(seg))
	ok, err := o.locks.TryLock(ctx, lockKey, o.cfg.LockTTL)
	if err != nil {
		log.Error("retrain lock failed", applogger.Error(err))
		res.Error = fmt.Sprintf("lock: %v", err)
		return res
	}
	if !ok {
		log.Warn("segment retrain already running elsewhere")
		res.Error = models.ErrRetrainInProgress.Error()
		return res
	}
	defer func() {
		if err := o.locks.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
			log.Warn("retrain unlock failed", applogger.Error(err))
		}
	}()

	m, trainSkips, err := o.trainer.Train(ctx, seg, verified, force)
	res.Skipped = append(res.Skipped, trainSkips...)
	if err != nil {
		log.Error("segment training failed", applogger.Error(err))
		res.Error = err.Error()
		return res
	}
	res.Trained = true
	res.Samples = m.Samples
	return res
}

// Verify keeps the symbols with at least MinHistoryDays bars in the
// verification window.
func (o *Orchestrator) Verify(ctx context.Context, seg models.Segment, symbols []string) ([]string, []models.Skip) {
	verified := make([]string, 0, len(symbols))
	var skips []models.Skip
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		bars, err := o.source.History(ctx, sym, o.cfg.VerifyPeriod)
		if err != nil && !errors.Is(err, models.ErrNoBars) {
			o.l.Warn("verify symbol failed", applogger.String("symbol", sym), applogger.Error(err))
		}
		if len(bars) < o.cfg.MinHistoryDays {
			skips = append(skips, models.Skip{Segment: seg, Symbol: sym, Reason: models.SkipUnverified})
			if o.metrics != nil {
				o.metrics.RecordSkip(string(seg), models.SkipUnverified)
			}
			continue
		}
		o.l.Debug("verified stock data", applogger.String("symbol", sym), applogger.Int("bars", len(bars)))
		verified = append(verified, sym)
	}
	return verified, skips
}
