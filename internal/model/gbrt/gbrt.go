// Package gbrt implements least-squares gradient boosting over histogram-binned features.
package gbrt

import (
	"math/rand"
	"slices"
	"sort"

	"github.com/newthinker/factorlab/internal/core"
	"github.com/newthinker/factorlab/internal/model"
	"gonum.org/v1/gonum/floats"
)

// Config holds boosting settings.
type Config struct {
	MaxIter        int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
	MaxBins        int
	L2             float64
	BinSubsample   int // rows sampled to compute bin edges; 0 uses every row
	Seed           int64
}

// DefaultConfig returns a small model suited to noisy factor data.
func DefaultConfig() Config {
	return Config{
		MaxIter:        400,
		LearningRate:   0.05,
		MaxDepth:       3,
		MinSamplesLeaf: 20,
		MaxBins:        255,
		BinSubsample:   200_000,
		Seed:           42,
	}
}

type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

type tree struct {
	nodes []node
}

func (t *tree) predict(row []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.leaf {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// Model is a boosted ensemble of depth-limited regression trees.
type Model struct {
	cfg Config

	fitted bool
	width  int
	base   float64
	trees  []tree
}

// New creates an unfitted model.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Name returns the model identifier.
func (m *Model) Name() string {
	return "gbrt"
}

// Trees returns the number of boosting rounds kept by the last fit.
func (m *Model) Trees() int {
	return len(m.trees)
}

// Fit trains the ensemble from scratch. Identical inputs and seed give identical models.
func (m *Model) Fit(X [][]float64, y []float64) error {
	width, err := model.CheckDesign(X, y)
	if err != nil {
		return err
	}
	if m.cfg.MaxBins < 2 || m.cfg.MaxBins > 65535 {
		return core.Errorf(core.ErrConfigInvalid, "max_bins must be in [2, 65535], got %d", m.cfg.MaxBins)
	}

	rng := rand.New(rand.NewSource(m.cfg.Seed))
	edges := make([][]float64, width)
	binned := make([][]uint16, width)
	for j := 0; j < width; j++ {
		edges[j] = binEdges(X, j, m.cfg.MaxBins, m.cfg.BinSubsample, rng)
		binned[j] = make([]uint16, len(X))
		for i, row := range X {
			binned[j][i] = uint16(sort.SearchFloat64s(edges[j], row[j]))
		}
	}

	b := &builder{
		cfg:    m.cfg,
		edges:  edges,
		binned: binned,
		grad:   make([]float64, len(y)),
		pred:   make([]float64, len(y)),
	}

	base := floats.Sum(y) / float64(len(y))
	for i := range b.pred {
		b.pred[i] = base
	}

	rows := make([]int, len(y))
	for i := range rows {
		rows[i] = i
	}

	trees := make([]tree, 0, m.cfg.MaxIter)
	for iter := 0; iter < m.cfg.MaxIter; iter++ {
		for i := range y {
			b.grad[i] = b.pred[i] - y[i]
		}
		t := b.grow(slices.Clone(rows))
		if len(t.nodes) == 1 && t.nodes[0].value == 0 {
			break
		}
		trees = append(trees, t)
	}

	m.width = width
	m.base = base
	m.trees = trees
	m.fitted = true
	return nil
}

// Predict scores each row.
func (m *Model) Predict(X [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, core.ErrModelNotFitted
	}
	if err := model.CheckWidth(X, m.width); err != nil {
		return nil, err
	}

	out := make([]float64, len(X))
	for i, row := range X {
		s := m.base
		for k := range m.trees {
			s += m.trees[k].predict(row)
		}
		out[i] = s
	}
	return out, nil
}

// binEdges returns ascending split thresholds for column j. Bin b holds values in
// (edges[b-1], edges[b]].
func binEdges(X [][]float64, j, maxBins, subsample int, rng *rand.Rand) []float64 {
	var vals []float64
	if subsample > 0 && len(X) > subsample {
		idx := rng.Perm(len(X))[:subsample]
		vals = make([]float64, len(idx))
		for k, i := range idx {
			vals[k] = X[i][j]
		}
	} else {
		vals = make([]float64, len(X))
		for i, row := range X {
			vals[i] = row[j]
		}
	}
	slices.Sort(vals)
	uniq := slices.Compact(slices.Clone(vals))

	if len(uniq) <= maxBins {
		edges := make([]float64, 0, len(uniq)-1)
		for k := 1; k < len(uniq); k++ {
			edges = append(edges, (uniq[k-1]+uniq[k])/2)
		}
		return edges
	}

	edges := make([]float64, 0, maxBins-1)
	for k := 1; k < maxBins; k++ {
		pos := float64(k) / float64(maxBins) * float64(len(vals)-1)
		edges = append(edges, vals[int(pos)])
	}
	return slices.Compact(edges)
}

type builder struct {
	cfg    Config
	edges  [][]float64
	binned [][]uint16
	grad   []float64
	pred   []float64
}

func (b *builder) grow(rows []int) tree {
	t := tree{}
	b.split(&t, rows, 0)
	return t
}

// split appends a node for rows and returns its index.
func (b *builder) split(t *tree, rows []int, depth int) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{})

	var g float64
	for _, i := range rows {
		g += b.grad[i]
	}
	h := float64(len(rows))

	feature, bin, ok := -1, 0, false
	if depth < b.cfg.MaxDepth && len(rows) >= 2*b.cfg.MinSamplesLeaf {
		feature, bin, ok = b.bestSplit(rows, g, h)
	}
	if !ok {
		value := -b.cfg.LearningRate * g / (h + b.cfg.L2)
		for _, i := range rows {
			b.pred[i] += value
		}
		t.nodes[idx] = node{leaf: true, value: value}
		return idx
	}

	col := b.binned[feature]
	var left, right []int
	for _, i := range rows {
		if int(col[i]) <= bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.split(t, left, depth+1)
	r := b.split(t, right, depth+1)
	t.nodes[idx] = node{
		feature:   feature,
		threshold: b.edges[feature][bin],
		left:      l,
		right:     r,
	}
	return idx
}

func (b *builder) bestSplit(rows []int, g, h float64) (feature, bin int, ok bool) {
	lambda := b.cfg.L2
	minLeaf := float64(max(b.cfg.MinSamplesLeaf, 1))
	parent := g * g / (h + lambda)
	bestGain := 1e-12

	for j, edges := range b.edges {
		nb := len(edges) + 1
		if nb < 2 {
			continue
		}
		gh := make([]float64, nb)
		hh := make([]float64, nb)
		col := b.binned[j]
		for _, i := range rows {
			gh[col[i]] += b.grad[i]
			hh[col[i]]++
		}

		var gl, hl float64
		for k := 0; k < nb-1; k++ {
			gl += gh[k]
			hl += hh[k]
			gr, hr := g-gl, h-hl
			if hl < minLeaf || hr < minLeaf {
				continue
			}
			gain := gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent
			if gain > bestGain {
				bestGain, feature, bin, ok = gain, j, k, true
			}
		}
	}
	return feature, bin, ok
}
