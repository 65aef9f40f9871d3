package walkforward

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/newthinker/factorlab/internal/core"
	"github.com/newthinker/factorlab/internal/model"
	"github.com/newthinker/factorlab/internal/portfolio"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// DefaultMinTrainRows is the smallest train design a split is fitted on.
const DefaultMinTrainRows = 1000

// Split and rebalance outcomes reported to a Recorder.
const (
	OutcomeTrained          = "trained"
	OutcomeInsufficientRows = "insufficient_rows"
	OutcomeFitFailed        = "fit_failed"
	OutcomeBuilt            = "built"
	OutcomeSkipped          = "skipped"
)

// Recorder receives progress counters from a run.
type Recorder interface {
	RecordSplit(outcome string)
	RecordRebalance(outcome string)
	ObserveFit(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordSplit(string)       {}
func (nopRecorder) RecordRebalance(string)   {}
func (nopRecorder) ObserveFit(time.Duration) {}

// Outcome is the result of a walk-forward run.
type Outcome struct {
	Schedule      *core.PositionSchedule
	Splits        int
	SplitsTrained int
	SplitsSkipped int
	DatesBuilt    int
	DatesSkipped  int
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets how many splits are fitted concurrently.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithMinTrainRows sets the train design size below which a split is skipped.
func WithMinTrainRows(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.minTrainRows = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// Runner retrains a fresh scorer per split and turns its test-window scores into
// positions.
type Runner struct {
	splitter     *Splitter
	factory      model.Factory
	builder      *portfolio.Builder
	minTrainRows int
	workers      int
	logger       *zap.Logger
	recorder     Recorder
}

// NewRunner creates a runner. Splits run sequentially unless WithWorkers is given.
func NewRunner(splitter *Splitter, factory model.Factory, builder *portfolio.Builder, opts ...Option) *Runner {
	r := &Runner{
		splitter:     splitter,
		factory:      factory,
		builder:      builder,
		minTrainRows: DefaultMinTrainRows,
		workers:      1,
		logger:       zap.NewNop(),
		recorder:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type counters struct {
	trained, skipped, built, datesSkipped atomic.Int64
}

// Run builds the position schedule for the given rebalance dates. A skipped or failed
// split never aborts the others. Cancelling ctx stops new splits from starting and
// returns the partial outcome with ctx.Err().
func (r *Runner) Run(ctx context.Context, panel *core.FeaturePanel, rebalance []time.Time) (*Outcome, error) {
	if panel == nil {
		return nil, core.Errorf(core.ErrInvalidInput, "feature panel is nil")
	}
	splits, err := r.splitter.Split(rebalance)
	if err != nil {
		return nil, err
	}

	r.logger.Info("walk-forward splits generated",
		zap.Int("rebalance_dates", len(rebalance)),
		zap.Int("splits", len(splits)),
		zap.Int("workers", r.workers),
	)

	sched := core.NewPositionSchedule()
	var c counters

	p := pool.New().WithMaxGoroutines(r.workers)
	for _, s := range splits {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			r.runSplit(ctx, panel, s, sched, &c)
		})
	}
	p.Wait()

	out := &Outcome{
		Schedule:      sched,
		Splits:        len(splits),
		SplitsTrained: int(c.trained.Load()),
		SplitsSkipped: int(c.skipped.Load()),
		DatesBuilt:    int(c.built.Load()),
		DatesSkipped:  int(c.datesSkipped.Load()),
	}

	r.logger.Info("walk-forward run finished",
		zap.Int("splits_trained", out.SplitsTrained),
		zap.Int("splits_skipped", out.SplitsSkipped),
		zap.Int("dates_built", out.DatesBuilt),
		zap.Int("dates_skipped", out.DatesSkipped),
		zap.Int("schedule_entries", sched.Len()),
	)

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (r *Runner) runSplit(ctx context.Context, panel *core.FeaturePanel, s Split, sched *core.PositionSchedule, c *counters) {
	if ctx.Err() != nil {
		return
	}

	cutoff := s.Cutoff()
	log := r.logger.With(zap.String("cutoff", cutoff.Format(core.DateLayout)))

	if n := panel.CountRows(s.TrainDates); n < r.minTrainRows {
		log.Info("skipping split: not enough training rows",
			zap.Int("rows", n),
			zap.Int("min_rows", r.minTrainRows),
		)
		c.skipped.Add(1)
		r.recorder.RecordSplit(OutcomeInsufficientRows)
		return
	}

	X, y := panel.Design(s.TrainDates)
	scorer := r.factory()
	start := time.Now()
	err := scorer.Fit(X, y)
	r.recorder.ObserveFit(time.Since(start))
	if err != nil {
		log.Warn("skipping split: fit failed",
			zap.String("model", scorer.Name()),
			zap.Error(err),
		)
		c.skipped.Add(1)
		r.recorder.RecordSplit(OutcomeFitFailed)
		return
	}
	c.trained.Add(1)
	r.recorder.RecordSplit(OutcomeTrained)

	for _, d := range s.TestDates {
		if ctx.Err() != nil {
			return
		}
		w, err := r.builder.Build(scorer, panel.CrossSection(d))
		if err != nil {
			if !errors.Is(err, core.ErrInsufficientData) {
				log.Warn("rebalance date failed",
					zap.String("date", d.Format(core.DateLayout)),
					zap.Error(err),
				)
			}
			c.datesSkipped.Add(1)
			r.recorder.RecordRebalance(OutcomeSkipped)
			continue
		}
		sched.Merge(d, w, cutoff)
		c.built.Add(1)
		r.recorder.RecordRebalance(OutcomeBuilt)
	}

	log.Debug("split done",
		zap.Int("train_rows", len(y)),
		zap.Int("test_dates", len(s.TestDates)),
	)
}
