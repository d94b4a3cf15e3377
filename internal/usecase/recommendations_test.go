package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"FinRank/internal/domain/models"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/metrics"
)

func TestGenerateStoresSetAndToleratesSinkFailure(t *testing.T) {
	e := newEnv(t, nil)
	trainAll(t, e)
	sink := &recordingSink{err: errors.New("postgres down")}
	uc := NewRecommendationsUseCase(e.orch, sink, metrics.Nop{}, applogger.Nop())

	set, err := uc.Generate(context.Background(), profile)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if set.BatchID == uuid.Nil || len(set.Items) != 5 || set.Profile != profile {
		t.Fatalf("unexpected set %+v", set)
	}
	if len(sink.sets) != 1 || sink.sets[0] != set {
		t.Fatalf("sink did not receive the set")
	}
}

func TestGeneratePropagatesNoRecommendations(t *testing.T) {
	e := newEnv(t, nil)
	sink := &recordingSink{}
	uc := NewRecommendationsUseCase(e.orch, sink, metrics.Nop{}, applogger.Nop())
	if _, err := uc.Generate(context.Background(), profile); !errors.Is(err, models.ErrNoRecommendations) {
		t.Fatalf("expected ErrNoRecommendations, got %v", err)
	}
	if len(sink.sets) != 0 {
		t.Fatalf("sink called without results")
	}
	if st := uc.Segments(); len(st) != 3 || st[0].Trained {
		t.Fatalf("unexpected status %+v", st)
	}
}
