package model

import (
	"errors"
	"testing"

	"github.com/newthinker/factorlab/internal/core"
)

func TestCheckDesign(t *testing.T) {
	tests := []struct {
		name    string
		X       [][]float64
		y       []float64
		want    int
		wantErr *core.Error
	}{
		{"valid", [][]float64{{1, 2}, {3, 4}}, []float64{1, 2}, 2, nil},
		{"empty", nil, nil, 0, core.ErrInsufficientData},
		{"length mismatch", [][]float64{{1}}, []float64{1, 2}, 0, core.ErrInvalidInput},
		{"ragged", [][]float64{{1, 2}, {3}}, []float64{1, 2}, 0, core.ErrInvalidInput},
		{"no features", [][]float64{{}}, []float64{1}, 0, core.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckDesign(tt.X, tt.y)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CheckDesign() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("width = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCheckWidth(t *testing.T) {
	if err := CheckWidth([][]float64{{1, 2}}, 2); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckWidth([][]float64{{1}}, 2); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}
