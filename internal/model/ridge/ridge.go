// Package ridge implements standardized ridge regression.
package ridge

import (
	"github.com/newthinker/factorlab/internal/core"
	"github.com/newthinker/factorlab/internal/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Config holds ridge settings.
type Config struct {
	Alpha float64 // L2 penalty on standardized coefficients
}

// DefaultConfig returns the default ridge settings.
func DefaultConfig() Config {
	return Config{Alpha: 1.0}
}

// Ridge fits y ≈ b0 + Σ βj·zj on z-scored features.
type Ridge struct {
	cfg Config

	fitted    bool
	intercept float64
	means     []float64
	scales    []float64
	coef      []float64
}

// New creates an unfitted ridge model.
func New(cfg Config) *Ridge {
	return &Ridge{cfg: cfg}
}

// Name returns the model identifier.
func (r *Ridge) Name() string {
	return "ridge"
}

// Fit solves (ZᵀZ + αI)β = Zᵀ(y − ȳ).
func (r *Ridge) Fit(X [][]float64, y []float64) error {
	p, err := model.CheckDesign(X, y)
	if err != nil {
		return err
	}
	n := len(X)

	means := make([]float64, p)
	scales := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		m, s := stat.PopMeanStdDev(col, nil)
		if s == 0 {
			s = 1
		}
		means[j], scales[j] = m, s
	}

	Z := mat.NewDense(n, p, nil)
	for i, row := range X {
		for j, v := range row {
			Z.Set(i, j, (v-means[j])/scales[j])
		}
	}

	ybar := floats.Sum(y) / float64(n)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - ybar
	}

	var gram mat.Dense
	gram.Mul(Z.T(), Z)
	for j := 0; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+r.cfg.Alpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(Z.T(), mat.NewVecDense(n, yc))

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &rhs); err != nil {
		return core.WrapError(core.ErrModelFailed, err)
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j)
	}

	r.intercept = ybar
	r.means = means
	r.scales = scales
	r.coef = coef
	r.fitted = true
	return nil
}

// Predict scores each row.
func (r *Ridge) Predict(X [][]float64) ([]float64, error) {
	if !r.fitted {
		return nil, core.ErrModelNotFitted
	}
	if err := model.CheckWidth(X, len(r.coef)); err != nil {
		return nil, err
	}

	out := make([]float64, len(X))
	for i, row := range X {
		s := r.intercept
		for j, v := range row {
			s += r.coef[j] * (v - r.means[j]) / r.scales[j]
		}
		out[i] = s
	}
	return out, nil
}

// Coefficients returns the fitted standardized coefficients.
func (r *Ridge) Coefficients() []float64 {
	return append([]float64(nil), r.coef...)
}
