package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FinRank/internal/domain/models"
)

func sampleArtifacts(seg models.Segment) *models.SegmentArtifacts {
	return &models.SegmentArtifacts{
		Segment: seg,
		SavedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Model:   []byte(`{"features":9,"trees":[]}`),
		Scaler:  []byte(`{"mean":[0],"scale":[1]}`),
		Prices: map[string][]models.Bar{
			"INFY.NS": {{Date: time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), Symbol: "INFY.NS", Close: 1500, Volume: 10}},
		},
	}
}

func TestArtifactStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFileArtifactStore(t.TempDir(), 2, nil)
	in := sampleArtifacts(models.LargeCap)
	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := s.Load(ctx, models.LargeCap)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(out.Model) != string(in.Model) || string(out.Scaler) != string(in.Scaler) {
		t.Fatalf("model or scaler changed across save/load")
	}
	bars := out.Prices["INFY.NS"]
	if len(bars) != 1 || bars[0].Close != 1500 || !bars[0].Date.Equal(in.Prices["INFY.NS"][0].Date) {
		t.Fatalf("unexpected prices %+v", out.Prices)
	}
	if !out.SavedAt.Equal(in.SavedAt) {
		t.Fatalf("saved_at %v, want %v", out.SavedAt, in.SavedAt)
	}
}

func TestArtifactStoreLoadMissing(t *testing.T) {
	s := NewFileArtifactStore(t.TempDir(), 2, nil)
	_, err := s.Load(context.Background(), models.MidCap)
	if !errors.Is(err, models.ErrArtifactsNotFound) {
		t.Fatalf("expected ErrArtifactsNotFound, got %v", err)
	}
}

func TestArtifactStoreMissingPricesIsNotFatal(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFileArtifactStore(root, 2, nil)
	if err := s.Save(ctx, sampleArtifacts(models.SmallCap)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "small_cap", "gen-000001", pricesFile)); err != nil {
		t.Fatalf("remove prices: %v", err)
	}
	out, err := s.Load(ctx, models.SmallCap)
	if err != nil {
		t.Fatalf("load without prices: %v", err)
	}
	if out.Prices != nil {
		t.Fatalf("expected nil prices, got %v", out.Prices)
	}
}

func TestArtifactStoreSkipsUntrained(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFileArtifactStore(root, 2, nil)
	for _, a := range []*models.SegmentArtifacts{nil, {Segment: models.LargeCap}} {
		if err := s.Save(ctx, a); err != nil {
			t.Fatalf("untrained save should be a no-op, got %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, string(models.LargeCap), manifestFile)); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected no manifest, stat err %v", err)
	}
	if _, err := s.Load(ctx, models.LargeCap); !errors.Is(err, models.ErrArtifactsNotFound) {
		t.Fatalf("expected ErrArtifactsNotFound, got %v", err)
	}
}

func TestArtifactStoreLatestWinsAndPrunes(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFileArtifactStore(root, 2, nil)
	for i := 0; i < 4; i++ {
		a := sampleArtifacts(models.LargeCap)
		a.Model = []byte(`{"v":` + string(rune('0'+i)) + `}`)
		if err := s.Save(ctx, a); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	out, err := s.Load(ctx, models.LargeCap)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(out.Model) != `{"v":3}` {
		t.Fatalf("expected last save to win, got %s", out.Model)
	}
	entries, err := os.ReadDir(filepath.Join(root, "large_cap"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var gens []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), genPrefix) {
			gens = append(gens, e.Name())
		}
	}
	if len(gens) != 2 || gens[0] != "gen-000003" || gens[1] != "gen-000004" {
		t.Fatalf("unexpected generations %v", gens)
	}
}
