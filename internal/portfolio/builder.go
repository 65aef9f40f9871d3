// Package portfolio turns cross-sectional scores into long/short weight vectors.
package portfolio

import (
	"fmt"
	"math"
	"slices"

	"github.com/newthinker/factorlab/internal/core"
	"github.com/newthinker/factorlab/internal/model"
)

// Builder selects equal-weighted long and short legs by score quantile.
type Builder struct {
	topQ        float64
	botQ        float64
	minUniverse int
}

// NewBuilder validates the leg fractions and universe floor.
func NewBuilder(topQ, botQ float64, minUniverse int) (*Builder, error) {
	if topQ <= 0 || topQ > 0.5 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("top_q must be in (0, 0.5], got %v", topQ))
	}
	if botQ <= 0 || botQ > 0.5 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("bot_q must be in (0, 0.5], got %v", botQ))
	}
	if minUniverse < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("min_universe must be >= 1, got %d", minUniverse))
	}
	return &Builder{topQ: topQ, botQ: botQ, minUniverse: minUniverse}, nil
}

// Build scores one cross-section and returns its weight vector. A cross-section
// narrower than the universe floor yields ErrInsufficientData.
func (b *Builder) Build(scorer model.Scorer, rows []core.FeatureRow) (core.WeightVector, error) {
	if len(rows) < b.minUniverse {
		return nil, core.Errorf(core.ErrInsufficientData, "cross-section has %d tickers, need %d", len(rows), b.minUniverse)
	}

	X := make([][]float64, len(rows))
	tickers := make([]string, len(rows))
	for i, r := range rows {
		X[i] = r.Features
		tickers[i] = r.Ticker
	}

	scores, err := scorer.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("scoring cross-section: %w", err)
	}
	if len(scores) != len(rows) {
		return nil, core.Errorf(core.ErrInvalidInput, "scorer returned %d scores for %d rows", len(scores), len(rows))
	}

	w := SelectLegs(tickers, scores, b.topQ, b.botQ)
	if len(w) == 0 {
		return nil, core.Errorf(core.ErrInsufficientData, "no finite scores in cross-section")
	}
	return w, nil
}

// SelectLegs longs every ticker scoring at or above the (1-topQ) quantile and shorts every
// ticker at or below the botQ quantile, equal-weighted within each leg. Ties at a cut
// enlarge the leg. A ticker meeting both cuts goes to the short leg only. Non-finite
// scores are dropped; every other ticker gets an explicit zero.
func SelectLegs(tickers []string, scores []float64, topQ, botQ float64) core.WeightVector {
	finite := make([]float64, 0, len(scores))
	for _, s := range scores {
		if core.IsFinite(s) {
			finite = append(finite, s)
		}
	}
	if len(finite) == 0 {
		return core.WeightVector{}
	}
	slices.Sort(finite)

	longCut := Quantile(finite, 1-topQ)
	shortCut := Quantile(finite, botQ)

	var longs, shorts []string
	w := make(core.WeightVector, len(finite))
	for i, t := range tickers {
		s := scores[i]
		if !core.IsFinite(s) {
			continue
		}
		w[t] = 0
		switch {
		case s <= shortCut:
			shorts = append(shorts, t)
		case s >= longCut:
			longs = append(longs, t)
		}
	}

	for _, t := range longs {
		w[t] = 1 / float64(len(longs))
	}
	for _, t := range shorts {
		w[t] = -1 / float64(len(shorts))
	}
	return w
}

// Quantile returns the q-quantile of ascending values, interpolating linearly between
// the two nearest order statistics.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	if lo < 0 {
		return sorted[0]
	}
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}
