package model

import "github.com/newthinker/factorlab/internal/core"

// CheckDesign validates a training design and returns its feature width.
func CheckDesign(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, core.Errorf(core.ErrInsufficientData, "empty training set")
	}
	if len(X) != len(y) {
		return 0, core.Errorf(core.ErrInvalidInput, "design has %d rows but %d targets", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, core.Errorf(core.ErrInvalidInput, "design has no features")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, core.Errorf(core.ErrInvalidInput, "row %d has %d features, want %d", i, len(row), width)
		}
	}
	return width, nil
}

// CheckWidth validates prediction inputs against a fitted width.
func CheckWidth(X [][]float64, width int) error {
	for i, row := range X {
		if len(row) != width {
			return core.Errorf(core.ErrInvalidInput, "row %d has %d features, want %d", i, len(row), width)
		}
	}
	return nil
}
