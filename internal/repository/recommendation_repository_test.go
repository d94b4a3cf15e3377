package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"FinRank/internal/domain/models"
)

func sampleSet() *models.RecommendationSet {
	return &models.RecommendationSet{
		BatchID:     uuid.MustParse("6f1c1a52-8a55-4df3-9d0a-5d8f6f1f9c11"),
		GeneratedAt: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
		Profile: models.RiskProfile{
			RiskToleranceScore:       60,
			TargetAmount:             1000000,
			MonthlyInvestment:        50000,
			InvestmentDurationMonths: 60,
		},
		Items: []models.Recommendation{
			{Symbol: "INFY.NS", CurrentPrice: 1501.23456, ExpectedReturn: 0.002, RiskAdjustedScore: 0.4, SharesPossible: 33.306, ProjectedValue: 1234567.891, MarketCapCategory: models.LargeCap},
			{Symbol: "PNB.NS", CurrentPrice: 98.1, ExpectedReturn: -0.01, RiskAdjustedScore: math.Inf(-1), SharesPossible: 509.68, ProjectedValue: math.Inf(1), MarketCapCategory: models.SmallCap},
		},
	}
}

func TestRecommendationRows(t *testing.T) {
	rows, err := recommendationRows(sampleSet())
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	for _, r := range rows {
		if len(r) != len(recommendationColumns) {
			t.Fatalf("row has %d values, want %d", len(r), len(recommendationColumns))
		}
	}
	first := rows[0]
	if first[2] != 1 || first[3] != "INFY.NS" || first[4] != "large_cap" {
		t.Fatalf("unexpected identity columns %v", first[:5])
	}
	if first[5] != "1501.2346" || first[9] != "1234567.89" {
		t.Fatalf("money not rounded: price=%v projected=%v", first[5], first[9])
	}
	second := rows[1]
	if second[2] != 2 {
		t.Fatalf("rank %v, want 2", second[2])
	}
	if nf, ok := second[7].(sql.NullFloat64); !ok || nf.Valid {
		t.Fatalf("non-finite score should be NULL, got %v", second[7])
	}
	if second[9] != nil {
		t.Fatalf("non-finite projection should be NULL, got %v", second[9])
	}
}

func TestKafkaRecommendationPublisherKeysByBatch(t *testing.T) {
	fp := &fakePublisher{}
	set := sampleSet()
	if err := NewKafkaRecommendationPublisher(fp, "recs").Store(context.Background(), set); err != nil {
		t.Fatalf("store: %v", err)
	}
	if len(fp.msgs) != 1 || fp.msgs[0].topic != "recs" || fp.msgs[0].key != set.BatchID.String() {
		t.Fatalf("unexpected publish %+v", fp.msgs)
	}
	// The payload must survive JSON encoding despite the infinite score.
	if _, err := json.Marshal(fp.msgs[0].value); err != nil {
		t.Fatalf("payload not encodable: %v", err)
	}
}

func TestKafkaEventPublisherKeysBySegment(t *testing.T) {
	fp := &fakePublisher{}
	ev := models.SegmentTrainedEvent{Segment: models.MidCap, Symbols: []string{"SAIL.NS"}, Samples: 200}
	if err := NewKafkaEventPublisher(fp, "trained").PublishSegmentTrained(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if fp.msgs[0].key != "mid_cap" || fp.msgs[0].topic != "trained" {
		t.Fatalf("unexpected publish %+v", fp.msgs[0])
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &fakePublisher{}
	bad := &fakePublisher{err: boom}
	sink := MultiSink{
		NewKafkaRecommendationPublisher(bad, "a"),
		NewKafkaRecommendationPublisher(ok, "b"),
		NopSink{},
	}
	err := sink.Store(context.Background(), sampleSet())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(ok.msgs) != 1 {
		t.Fatalf("healthy sink skipped after failure")
	}
}
