package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinRank/internal/domain/models"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/util"
)

// retrainer is the part of Orchestrator the scheduler and command handler drive.
type retrainer interface {
	RetrainAll(ctx context.Context, opts RetrainOptions) (*models.RetrainReport, error)
}

type SchedulerConfig struct {
	Hour      int
	Minute    int
	OnStartup bool
	Timeout   time.Duration
}

// RetrainScheduler forces a full retrain every day at a wall-clock time.
type RetrainScheduler struct {
	r   retrainer
	cfg SchedulerConfig
	l   *applogger.Logger
	now func() time.Time
	// after is swapped in tests.
	after func(d time.Duration) <-chan time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRetrainScheduler(r retrainer, cfg SchedulerConfig, l *applogger.Logger) *RetrainScheduler {
	return &RetrainScheduler{r: r, cfg: cfg, l: l, now: time.Now, after: time.After}
}

// Start runs the schedule until Stop or ctx ends.
func (s *RetrainScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop cancels the schedule and waits for a running retrain to return.
func (s *RetrainScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *RetrainScheduler) loop(ctx context.Context) {
	if s.cfg.OnStartup {
		s.run(ctx, "startup")
	}
	for {
		next := util.NextClock(s.now(), s.cfg.Hour, s.cfg.Minute)
		s.l.Info("next scheduled retrain", applogger.String("at", next.Format(time.RFC3339)))
		select {
		case <-ctx.Done():
			return
		case <-s.after(next.Sub(s.now())):
			s.run(ctx, "schedule")
		}
	}
}

func (s *RetrainScheduler) run(ctx context.Context, trigger string) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	report, err := s.r.RetrainAll(ctx, RetrainOptions{RunID: uuid.New(), Force: true, RequestedBy: trigger})
	switch {
	case errors.Is(err, models.ErrRetrainInProgress):
		s.l.Warn("scheduled retrain skipped, another run is active", applogger.String("trigger", trigger))
	case err != nil:
		s.l.Error("scheduled retrain failed", applogger.String("trigger", trigger), applogger.Error(err))
	default:
		s.l.Info("scheduled retrain done",
			applogger.String("trigger", trigger),
			applogger.Int("trained", report.TrainedCount()),
		)
	}
}
