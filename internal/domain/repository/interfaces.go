package repository

import (
	"context"

	"FinRank/internal/domain/models"
	"FinRank/pkg/util"
)

// PriceSource returns daily bars for a symbol over a lookback window.
// Implementations return models.ErrNoBars when the provider has nothing.
type PriceSource interface {
	History(ctx context.Context, symbol string, period util.Period) ([]models.Bar, error)
}

// BarArchive keeps a copy of fetched bars.
type BarArchive interface {
	StoreBars(ctx context.Context, bars []models.Bar) error
}

// ArtifactStore persists trained segment models.
type ArtifactStore interface {
	Load(ctx context.Context, segment models.Segment) (*models.SegmentArtifacts, error)
	Save(ctx context.Context, a *models.SegmentArtifacts) error
}

// RecommendationSink receives generated recommendation sets.
type RecommendationSink interface {
	Store(ctx context.Context, set *models.RecommendationSet) error
}

// EventPublisher announces model lifecycle events.
type EventPublisher interface {
	PublishSegmentTrained(ctx context.Context, ev models.SegmentTrainedEvent) error
}

type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordTraining(segment string, symbols, samples int)
	RecordSkip(segment, reason string)
	RecordScore(segment, symbol string, score float64)
}
