// internal/model/factory/factory.go
package factory

import (
	"fmt"

	"github.com/newthinker/factorlab/internal/config"
	"github.com/newthinker/factorlab/internal/core"
	"github.com/newthinker/factorlab/internal/model"
	"github.com/newthinker/factorlab/internal/model/gbrt"
	"github.com/newthinker/factorlab/internal/model/ridge"
)

// New returns a factory producing fresh scorers of the configured kind.
func New(cfg config.ModelConfig) (model.Factory, error) {
	switch cfg.Kind {
	case "gbrt":
		gc := gbrt.Config{
			MaxIter:        cfg.GBRT.MaxIter,
			LearningRate:   cfg.GBRT.LearningRate,
			MaxDepth:       cfg.GBRT.MaxDepth,
			MinSamplesLeaf: cfg.GBRT.MinSamplesLeaf,
			MaxBins:        cfg.GBRT.MaxBins,
			L2:             cfg.GBRT.L2,
			BinSubsample:   cfg.GBRT.BinSubsample,
			Seed:           cfg.Seed,
		}
		return func() model.Scorer { return gbrt.New(gc) }, nil
	case "ridge":
		rc := ridge.Config{Alpha: cfg.Ridge.Alpha}
		return func() model.Scorer { return ridge.New(rc) }, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown model kind: %s", cfg.Kind))
	}
}
