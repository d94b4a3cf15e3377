package repository

import (
	"context"
	"sync"

	"FinRank/internal/domain/models"
	"FinRank/pkg/util"
)

type fakeSource struct {
	mu    sync.Mutex
	bars  []models.Bar
	err   error
	calls int
}

func (f *fakeSource) History(_ context.Context, symbol string, _ util.Period) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Bar, len(f.bars))
	copy(out, f.bars)
	for i := range out {
		out[i].Symbol = symbol
	}
	return out, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeArchive struct {
	stored []models.Bar
	err    error
}

func (f *fakeArchive) StoreBars(_ context.Context, bars []models.Bar) error {
	f.stored = append(f.stored, bars...)
	return f.err
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}
func (m *fakeMetrics) RecordLatency(string, float64) {}
func (m *fakeMetrics) RecordTraining(string, int, int) {}
func (m *fakeMetrics) RecordSkip(string, string) {}
func (m *fakeMetrics) RecordScore(string, string, float64) {}

type published struct {
	topic string
	key   string
	value interface{}
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.msgs = append(f.msgs, published{topic: topic, key: string(key), value: value})
	return f.err
}
