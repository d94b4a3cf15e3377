package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	domsvc "FinRank/internal/domain/service"
)

// ForestConfig controls random forest training.
type ForestConfig struct {
	Trees          int   `json:"trees"`
	Seed           int64 `json:"seed"`
	MaxDepth       int   `json:"max_depth"` // 0 means unlimited
	MinSamplesLeaf int   `json:"min_samples_leaf"`
	Workers        int   `json:"-"`
}

// DefaultForestConfig is 100 fully grown trees seeded with 42.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 100, Seed: 42, MinSamplesLeaf: 1, Workers: 4}
}

// Node is a flattened tree node. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a bagged ensemble of variance-reduction regression trees.
type Forest struct {
	Config   ForestConfig `json:"config"`
	Features int          `json:"features"`
	Trees    []Tree       `json:"trees"`
}

// FitForest trains one tree per bootstrap sample. Tree i draws its sample from
// a source seeded with Seed+i, so the result does not depend on Workers.
func FitForest(ctx context.Context, X [][]float64, y []float64, cfg ForestConfig) (*Forest, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("fit forest: empty matrix")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("fit forest: %d rows but %d targets", len(X), len(y))
	}
	features := len(X[0])
	for i, row := range X {
		if len(row) != features {
			return nil, fmt.Errorf("fit forest: row %d has %d columns, want %d", i, len(row), features)
		}
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = 1
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	f := &Forest{Config: cfg, Features: features, Trees: make([]Tree, cfg.Trees)}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				rng := rand.New(rand.NewSource(cfg.Seed + int64(t)))
				b := &builder{X: X, y: y, cfg: cfg, features: features}
				b.build(bootstrap(rng, len(X)), 0)
				f.Trees[t] = Tree{Nodes: b.nodes}
			}
		}()
	}

	var err error
	for t := 0; t < cfg.Trees; t++ {
		if err = ctx.Err(); err != nil {
			break
		}
		jobs <- t
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}
	return f, nil
}

// Predict averages the tree outputs.
func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 || len(x) != f.Features {
		return 0
	}
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].predict(x)
	}
	return sum / float64(len(f.Trees))
}

// DecodeForest restores a forest saved with json.Marshal.
func DecodeForest(b []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if len(f.Trees) == 0 || f.Features == 0 {
		return nil, fmt.Errorf("decode forest: empty model")
	}
	for ti, t := range f.Trees {
		for ni, n := range t.Nodes {
			if n.Feature >= f.Features || (n.Feature >= 0 && (n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes))) {
				return nil, fmt.Errorf("decode forest: tree %d node %d out of range", ti, ni)
			}
		}
	}
	return &f, nil
}

func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

type builder struct {
	X        [][]float64
	y        []float64
	cfg      ForestConfig
	features int
	nodes    []Node
}

// build appends the subtree for idx and returns its node index.
func (b *builder) build(idx []int, depth int) int {
	sum, sq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n

	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: mean})

	if len(idx) < 2*b.cfg.MinSamplesLeaf || (b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) {
		return self
	}
	if sq-sum*sum/n <= 1e-12 {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx, sum)
	if !ok {
		return self
	}
	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return self
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: mean}
	return self
}

// bestSplit maximises sumL^2/nL + sumR^2/nR, which minimises the children's squared error.
func (b *builder) bestSplit(idx []int, total float64) (int, float64, bool) {
	minLeaf := b.cfg.MinSamplesLeaf
	sorted := make([]int, len(idx))
	bestGain := total * total / float64(len(idx))
	bestFeature, bestThreshold, found := -1, 0.0, false

	for j := 0; j < b.features; j++ {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X[sorted[a]][j] < b.X[sorted[c]][j] })

		sumL := 0.0
		for k := 1; k < len(sorted); k++ {
			sumL += b.y[sorted[k-1]]
			lo, hi := b.X[sorted[k-1]][j], b.X[sorted[k]][j]
			if lo == hi || k < minLeaf || len(sorted)-k < minLeaf {
				continue
			}
			nL, nR := float64(k), float64(len(sorted)-k)
			sumR := total - sumL
			gain := sumL*sumL/nL + sumR*sumR/nR
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = j
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

var _ domsvc.Regressor = (*Forest)(nil)
