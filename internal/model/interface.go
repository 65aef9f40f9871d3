package model

// Scorer is a cross-sectional regression model.
//
// Fit replaces every fitted parameter; it never updates incrementally. Predict must not
// mutate the model and may be called any number of times after a successful Fit.
// A Scorer is not safe for concurrent Fit calls; give each concurrent split its own.
type Scorer interface {
	Name() string
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Factory creates a fresh, unfitted Scorer.
type Factory func() Scorer
