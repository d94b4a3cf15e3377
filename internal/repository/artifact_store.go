package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	applogger "FinRank/pkg/logger"
)

const (
	manifestFile = "MANIFEST"
	modelFile    = "model.json"
	scalerFile   = "scaler.json"
	pricesFile   = "prices.json"
	genPrefix    = "gen-"
)

type manifest struct {
	Generation int       `json:"generation"`
	Dir        string    `json:"dir"`
	SavedAt    time.Time `json:"saved_at"`
	Samples    int       `json:"samples"`
	HasPrices  bool      `json:"has_prices"`
}

// FileArtifactStore keeps one directory per segment. Each save writes a new
// generation directory and then swaps MANIFEST with a rename, so readers see
// either the old or the new model/scaler/prices triple.
type FileArtifactStore struct {
	root string
	keep int
	l    *applogger.Logger
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileArtifactStore keeps the newest keep generations per segment (minimum 1).
func NewFileArtifactStore(root string, keep int, l *applogger.Logger) *FileArtifactStore {
	if keep < 1 {
		keep = 1
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &FileArtifactStore{root: root, keep: keep, l: l, now: time.Now}
}

// Save writes a new generation. An untrained segment is skipped with a
// warning and leaves the store untouched.
func (s *FileArtifactStore) Save(ctx context.Context, a *models.SegmentArtifacts) error {
	if a == nil || len(a.Model) == 0 || len(a.Scaler) == 0 {
		seg := ""
		if a != nil {
			seg = string(a.Segment)
		}
		s.l.Warn("segment not trained, nothing to save", applogger.String("segment", seg))
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	segDir := filepath.Join(s.root, string(a.Segment))
	if err := os.MkdirAll(segDir, 0o755); err != nil {
		return fmt.Errorf("create segment dir: %w", err)
	}
	prev, err := readManifest(segDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	m := manifest{
		Generation: prev.Generation + 1,
		SavedAt:    a.SavedAt,
		Samples:    a.Samples,
		HasPrices:  a.Prices != nil,
	}
	if m.SavedAt.IsZero() {
		m.SavedAt = s.now().UTC()
	}
	m.Dir = fmt.Sprintf("%s%06d", genPrefix, m.Generation)
	genDir := filepath.Join(segDir, m.Dir)
	if err := os.RemoveAll(genDir); err != nil {
		return fmt.Errorf("clear generation dir: %w", err)
	}
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		return fmt.Errorf("create generation dir: %w", err)
	}

	if err := writeFileSync(filepath.Join(genDir, modelFile), a.Model); err != nil {
		return err
	}
	if err := writeFileSync(filepath.Join(genDir, scalerFile), a.Scaler); err != nil {
		return err
	}
	if a.Prices != nil {
		b, err := json.Marshal(a.Prices)
		if err != nil {
			return fmt.Errorf("encode prices: %w", err)
		}
		if err := writeFileSync(filepath.Join(genDir, pricesFile), b); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mb, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := filepath.Join(segDir, manifestFile+".tmp")
	if err := writeFileSync(tmp, mb); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(segDir, manifestFile)); err != nil {
		return fmt.Errorf("swap manifest: %w", err)
	}

	s.prune(segDir, m.Generation)
	s.l.Info("segment artifacts saved",
		applogger.String("segment", string(a.Segment)),
		applogger.Int("generation", m.Generation),
		applogger.Bool("has_prices", m.HasPrices),
	)
	return nil
}

func (s *FileArtifactStore) Load(ctx context.Context, segment models.Segment) (*models.SegmentArtifacts, error) {
	segDir := filepath.Join(s.root, string(segment))
	m, err := readManifest(segDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", segment, models.ErrArtifactsNotFound)
		}
		return nil, err
	}
	genDir := filepath.Join(segDir, m.Dir)

	model, err := os.ReadFile(filepath.Join(genDir, modelFile))
	if err != nil {
		return nil, missing(segment, modelFile, err)
	}
	scaler, err := os.ReadFile(filepath.Join(genDir, scalerFile))
	if err != nil {
		return nil, missing(segment, scalerFile, err)
	}
	a := &models.SegmentArtifacts{
		Segment: segment,
		SavedAt: m.SavedAt,
		Samples: m.Samples,
		Model:   model,
		Scaler:  scaler,
	}

	pb, err := os.ReadFile(filepath.Join(genDir, pricesFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.l.Warn("cached prices not found, segment has nothing to score until retrained",
			applogger.String("segment", string(segment)),
		)
	case err != nil:
		return nil, fmt.Errorf("read prices: %w", err)
	default:
		if err := json.Unmarshal(pb, &a.Prices); err != nil {
			return nil, fmt.Errorf("decode prices: %w", err)
		}
	}
	return a, nil
}

func (s *FileArtifactStore) prune(segDir string, current int) {
	entries, err := os.ReadDir(segDir)
	if err != nil {
		return
	}
	var gens []int
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), genPrefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), genPrefix)); err == nil {
			gens = append(gens, n)
		}
	}
	sort.Ints(gens)
	for _, n := range gens {
		if n > current-s.keep {
			continue
		}
		dir := filepath.Join(segDir, fmt.Sprintf("%s%06d", genPrefix, n))
		if err := os.RemoveAll(dir); err != nil {
			s.l.Warn("prune generation failed", applogger.String("dir", dir), applogger.Error(err))
		}
	}
}

func readManifest(segDir string) (manifest, error) {
	var m manifest
	b, err := os.ReadFile(filepath.Join(segDir, manifestFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

func missing(segment models.Segment, file string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s/%s: %w", segment, file, models.ErrArtifactsNotFound)
	}
	return fmt.Errorf("read %s: %w", file, err)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

var _ domrepo.ArtifactStore = (*FileArtifactStore)(nil)
