package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	domsvc "FinRank/internal/domain/service"
	"FinRank/internal/services/ml"
	applogger "FinRank/pkg/logger"
)

// SegmentModel is a trained segment: regressor, scaler and the price series
// it scores. It is never mutated after being published to the Registry.
type SegmentModel struct {
	Segment   models.Segment
	Regressor domsvc.Regressor
	Scaler    domsvc.Scaler
	Prices    map[string][]models.Bar
	TrainedAt time.Time
	Samples   int
}

func (m *SegmentModel) Trained() bool {
	return m != nil && m.Regressor != nil && m.Scaler != nil
}

// Symbols returns the cached symbols in sorted order.
func (m *SegmentModel) Symbols() []string {
	out := make([]string, 0, len(m.Prices))
	for s := range m.Prices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ModelFromArtifacts decodes persisted artifacts into a SegmentModel.
func ModelFromArtifacts(a *models.SegmentArtifacts) (*SegmentModel, error) {
	forest, err := ml.DecodeForest(a.Model)
	if err != nil {
		return nil, err
	}
	scaler, err := ml.DecodeScaler(a.Scaler)
	if err != nil {
		return nil, err
	}
	if forest.Features != len(scaler.Mean) {
		return nil, fmt.Errorf("model expects %d features, scaler has %d", forest.Features, len(scaler.Mean))
	}
	return &SegmentModel{
		Segment:   a.Segment,
		Regressor: forest,
		Scaler:    scaler,
		Prices:    a.Prices,
		TrainedAt: a.SavedAt,
		Samples:   a.Samples,
	}, nil
}

// Registry holds the live model per segment. Scoring reads under RLock, so a
// retrain that swaps a model is never observed half done.
type Registry struct {
	mu     sync.RWMutex
	models map[models.Segment]*SegmentModel
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[models.Segment]*SegmentModel)}
}

// LoadRegistry builds a registry from whatever artifacts are on disk.
// Missing or unreadable artifacts leave that segment untrained.
func LoadRegistry(ctx context.Context, store domrepo.ArtifactStore, l *applogger.Logger) *Registry {
	r := NewRegistry()
	for _, seg := range models.Segments {
		a, err := store.Load(ctx, seg)
		if err != nil {
			if errors.Is(err, models.ErrArtifactsNotFound) {
				l.Info("no saved model for segment", applogger.String("segment", string(seg)))
			} else {
				l.Error("load segment artifacts failed", applogger.String("segment", string(seg)), applogger.Error(err))
			}
			continue
		}
		m, err := ModelFromArtifacts(a)
		if err != nil {
			l.Error("decode segment artifacts failed", applogger.String("segment", string(seg)), applogger.Error(err))
			continue
		}
		r.Put(m)
		l.Info("segment model loaded",
			applogger.String("segment", string(seg)),
			applogger.Int("symbols", len(m.Prices)),
			applogger.Int("samples", m.Samples),
		)
	}
	return r
}

func (r *Registry) Get(seg models.Segment) (*SegmentModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[seg]
	return m, ok && m.Trained()
}

// Put replaces the segment's model.
func (r *Registry) Put(m *SegmentModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[m.Segment] = m
}

// Status lists every segment in merge order, trained or not.
func (r *Registry) Status() []models.SegmentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SegmentStatus, 0, len(models.Segments))
	for _, seg := range models.Segments {
		st := models.SegmentStatus{Segment: seg, Symbols: []string{}}
		if m, ok := r.models[seg]; ok && m.Trained() {
			st.Trained = true
			st.TrainedAt = m.TrainedAt
			st.Symbols = m.Symbols()
			st.Samples = m.Samples
		}
		out = append(out, st)
	}
	return out
}
