package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	applogger "FinRank/pkg/logger"
)

// RecommendationsUseCase answers a profile with a ranked set and hands it to the sinks.
type RecommendationsUseCase struct {
	orch        *Orchestrator
	sink        domrepo.RecommendationSink
	metrics     domrepo.Metrics
	l           *applogger.Logger
	sinkTimeout time.Duration
	now         func() time.Time
}

func NewRecommendationsUseCase(orch *Orchestrator, sink domrepo.RecommendationSink, metrics domrepo.Metrics, l *applogger.Logger) *RecommendationsUseCase {
	return &RecommendationsUseCase{
		orch:        orch,
		sink:        sink,
		metrics:     metrics,
		l:           l,
		sinkTimeout: 5 * time.Second,
		now:         time.Now,
	}
}

// Generate ranks candidates for p. Sink failures are logged, never returned.
func (uc *RecommendationsUseCase) Generate(ctx context.Context, p models.RiskProfile) (*models.RecommendationSet, error) {
	items, skips, err := uc.orch.Recommend(ctx, p)
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.RecordError("recommend")
		}
		return nil, err
	}
	set := &models.RecommendationSet{
		BatchID:     uuid.New(),
		GeneratedAt: uc.now().UTC(),
		Profile:     p,
		Items:       items,
		Skips:       skips,
	}

	if uc.sink != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.sinkTimeout)
		defer cancel()
		if err := uc.sink.Store(sctx, set); err != nil {
			if uc.metrics != nil {
				uc.metrics.RecordError("recommendation_sink")
			}
			uc.l.Warn("store recommendations failed",
				applogger.String("batch_id", set.BatchID.String()),
				applogger.Error(err),
			)
		}
	}
	return set, nil
}

func (uc *RecommendationsUseCase) Segments() []models.SegmentStatus {
	return uc.orch.Status()
}

func (uc *RecommendationsUseCase) Universe(ctx context.Context) models.StockUniverse {
	return uc.orch.Universe(ctx)
}

// Category returns the segment listing symbol, or UnknownSegment.
func (uc *RecommendationsUseCase) Category(ctx context.Context, symbol string) models.Segment {
	return uc.orch.CategoryOf(ctx, symbol)
}

// StartRetrain launches a background retrain and returns its run id.
func (uc *RecommendationsUseCase) StartRetrain(force bool, requestedBy string) (uuid.UUID, error) {
	return uc.orch.RetrainAsync(RetrainOptions{Force: force, RequestedBy: requestedBy})
}
