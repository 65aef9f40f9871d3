package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/factorlab/internal/backtest"
	"github.com/newthinker/factorlab/internal/config"
	"github.com/newthinker/factorlab/internal/core"
	"github.com/newthinker/factorlab/internal/data"
	"github.com/newthinker/factorlab/internal/metrics"
	"github.com/newthinker/factorlab/internal/model/factory"
	"github.com/newthinker/factorlab/internal/portfolio"
	"github.com/newthinker/factorlab/internal/storage/archive"
	"github.com/newthinker/factorlab/internal/storage/results"
	"github.com/newthinker/factorlab/internal/walkforward"
	"go.uber.org/zap"
)

// Run statuses recorded in metrics.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Report is the outcome of one pipeline run.
type Report struct {
	Run        results.Run
	ArchiveDir string // empty when archiving is disabled
}

// App wires the loaders, walk-forward runner, simulator and outputs together.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry
	writer  *results.Writer

	mu      sync.Mutex
	running bool
}

// New creates an App. Archiving and metrics follow the storage and metrics config.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}
	if cfg.Storage.Type != "none" {
		store, err := archive.New(cfg.Storage)
		if err != nil {
			return nil, err
		}
		a.writer = results.NewWriter(store, logger)
	}
	return a, nil
}

// Metrics returns the registry, or nil when metrics are disabled.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Run executes the full backtest pipeline once.
func (a *App) Run(ctx context.Context) (*Report, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil, fmt.Errorf("app already running")
	}
	a.running = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	start := time.Now()
	report, err := a.run(ctx)

	if a.metrics != nil {
		status := StatusSuccess
		if err != nil {
			status = StatusFailed
		}
		a.metrics.RecordRun(status, time.Since(start))
		if path := a.cfg.Metrics.Textfile; path != "" {
			if werr := a.metrics.WriteTextfile(path); werr != nil {
				a.logger.Warn("failed to write metrics textfile", zap.String("path", path), zap.Error(werr))
			}
		}
	}
	return report, err
}

func (a *App) run(ctx context.Context) (*Report, error) {
	cfg := a.cfg
	if err := cfg.ValidateInputs(); err != nil {
		return nil, err
	}

	features, err := data.LoadFeaturesFile(cfg.Data.Features, cfg.Data.TargetColumn, cfg.Data.FeatureColumns)
	if err != nil {
		return nil, fmt.Errorf("loading features: %w", err)
	}
	prices, err := data.LoadPricesFile(cfg.Data.Prices, cfg.Data.PriceColumn)
	if err != nil {
		return nil, fmt.Errorf("loading prices: %w", err)
	}
	a.logger.Info("inputs loaded",
		zap.Int("feature_rows", features.Panel.Len()),
		zap.Int("dropped_rows", features.Dropped),
		zap.Strings("features", features.Panel.FeatureNames()),
		zap.Int("price_dates", len(prices.Dates)),
		zap.Int("tickers", len(prices.Tickers)),
	)

	splitter, err := walkforward.NewSplitter(cfg.WalkForward.TrainYears, cfg.WalkForward.TestMonths, cfg.WalkForward.MinTrainDates)
	if err != nil {
		return nil, err
	}
	newScorer, err := factory.New(cfg.Model)
	if err != nil {
		return nil, err
	}
	builder, err := portfolio.NewBuilder(cfg.Portfolio.TopQ, cfg.Portfolio.BotQ, cfg.Portfolio.MinUniverse)
	if err != nil {
		return nil, err
	}

	opts := []walkforward.Option{
		walkforward.WithWorkers(cfg.Runner.Workers),
		walkforward.WithMinTrainRows(cfg.Model.MinTrainRows),
		walkforward.WithLogger(a.logger),
	}
	if a.metrics != nil {
		opts = append(opts, walkforward.WithRecorder(a.metrics))
	}
	runner := walkforward.NewRunner(splitter, newScorer, builder, opts...)

	rebalance := walkforward.MonthEnds(features.Panel.Dates())
	outcome, err := runner.Run(ctx, features.Panel, rebalance)
	if err != nil {
		return nil, err
	}
	if outcome.Schedule.Len() == 0 {
		return nil, core.Errorf(core.ErrInsufficientData,
			"no positions built from %d rebalance dates (%d splits)", len(rebalance), outcome.Splits)
	}

	sim := backtest.NewSimulator(cfg.Backtest.TCBps, a.logger)
	result, err := sim.Run(ctx, prices, outcome.Schedule)
	if err != nil {
		return nil, err
	}

	summary := results.Summary{
		RunID:     results.NewRunID(),
		CreatedAt: time.Now().UTC(),
		Model:     cfg.Model.Kind,
		Splits: results.SplitCounts{
			Trained:      outcome.SplitsTrained,
			Skipped:      outcome.SplitsSkipped,
			DatesBuilt:   outcome.DatesBuilt,
			DatesSkipped: outcome.DatesSkipped,
		},
		Strategy: result.Stats(cfg.Backtest.Freq),
	}

	if cfg.Data.Benchmark.Prices != "" {
		bench, err := a.benchmark(result.Returns)
		if err != nil {
			return nil, fmt.Errorf("benchmark: %w", err)
		}
		summary.Benchmark = bench
	}

	if a.metrics != nil {
		a.metrics.SetScheduleEntries(outcome.Schedule.Len())
		a.metrics.SetAvgTurnover(result.AvgTurnover)
	}

	report := &Report{Run: results.Run{Summary: summary, Schedule: outcome.Schedule, Result: result}}
	if a.writer != nil {
		dir, err := a.writer.Write(ctx, report.Run)
		if err != nil {
			return nil, err
		}
		report.ArchiveDir = dir
	}

	a.logger.Info("run complete",
		zap.String("run_id", summary.RunID),
		zap.Float64("cagr", summary.Strategy.CAGR),
		zap.Float64("sharpe", summary.Strategy.Sharpe),
		zap.Float64("max_dd", summary.Strategy.MaxDD),
		zap.Float64("avg_turnover", summary.Strategy.AvgTurnover),
	)
	return report, nil
}

// benchmark analyzes the configured benchmark over the strategy's dates.
func (a *App) benchmark(strategy core.DailyReturns) (*results.BenchmarkStats, error) {
	b := a.cfg.Data.Benchmark
	prices, err := data.LoadPricesFile(b.Prices, a.cfg.Data.PriceColumn)
	if err != nil {
		return nil, err
	}
	rets, err := backtest.AlignedReturns(prices, b.Ticker, strategy.Dates)
	if err != nil {
		return nil, err
	}
	return &results.BenchmarkStats{
		Ticker: b.Ticker,
		Stats:  backtest.CalculateStats(rets.Values, a.cfg.Backtest.Freq),
	}, nil
}

// ListRuns returns the summaries of every archived run, oldest first.
func (a *App) ListRuns(ctx context.Context) ([]results.Summary, error) {
	if a.writer == nil {
		return nil, errNoArchive()
	}
	ids, err := a.writer.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]results.Summary, 0, len(ids))
	for _, id := range ids {
		s, err := a.writer.ReadSummary(ctx, id)
		if err != nil {
			a.logger.Warn("skipping unreadable run", zap.String("run_id", id), zap.Error(err))
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

// ReadRun returns the summary of one archived run.
func (a *App) ReadRun(ctx context.Context, id string) (*results.Summary, error) {
	if a.writer == nil {
		return nil, errNoArchive()
	}
	return a.writer.ReadSummary(ctx, id)
}

func errNoArchive() error {
	return core.Errorf(core.ErrConfigMissing, "archive storage is disabled")
}
