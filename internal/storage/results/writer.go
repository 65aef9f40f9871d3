// Package results archives the artifacts of a backtest run.
package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/factorlab/internal/backtest"
	"github.com/newthinker/factorlab/internal/core"
	"github.com/newthinker/factorlab/internal/storage/archive"
	"go.uber.org/zap"
)

// Artifact names inside a run directory.
const (
	PositionsFile = "positions.json"
	ReturnsFile   = "returns.csv"
	StatsFile     = "stats.json"
)

// RunsPrefix is the archive directory holding one subdirectory per run.
const RunsPrefix = "runs"

// Summary is the stats.json document of a run.
type Summary struct {
	RunID     string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	Model     string          `json:"model"`
	Splits    SplitCounts     `json:"splits"`
	Strategy  backtest.Stats  `json:"strategy"`
	Benchmark *BenchmarkStats `json:"benchmark,omitempty"`
}

// SplitCounts summarizes the walk-forward outcome.
type SplitCounts struct {
	Trained      int `json:"trained"`
	Skipped      int `json:"skipped"`
	DatesBuilt   int `json:"dates_built"`
	DatesSkipped int `json:"dates_skipped"`
}

// BenchmarkStats are the stats of a buy-and-hold comparison series.
type BenchmarkStats struct {
	Ticker string         `json:"ticker"`
	Stats  backtest.Stats `json:"stats"`
}

// Run bundles everything written for one backtest.
type Run struct {
	Summary  Summary
	Schedule *core.PositionSchedule
	Result   *backtest.Result
}

// NewRunID returns a time-ordered run identifier.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Writer stores runs in an archive.
type Writer struct {
	store  archive.Storage
	logger *zap.Logger
}

// NewWriter creates a writer over store.
func NewWriter(store archive.Storage, logger ...*zap.Logger) *Writer {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Writer{store: store, logger: l}
}

func runPath(id, file string) string {
	return path.Join(RunsPrefix, id, file)
}

// Write stores the positions, returns and summary of run and returns the run directory.
// The summary is written last so a listed run always has complete artifacts.
func (w *Writer) Write(ctx context.Context, run Run) (string, error) {
	id := run.Summary.RunID
	if id == "" {
		return "", core.Errorf(core.ErrInvalidInput, "run id is empty")
	}

	positions, err := json.MarshalIndent(run.Schedule, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding positions: %w", err)
	}
	returns, err := EncodeReturns(run.Result)
	if err != nil {
		return "", err
	}
	summary, err := json.MarshalIndent(run.Summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding summary: %w", err)
	}

	for _, a := range []struct {
		name string
		data []byte
	}{
		{PositionsFile, positions},
		{ReturnsFile, returns},
		{StatsFile, summary},
	} {
		if err := w.store.Write(ctx, runPath(id, a.name), a.data); err != nil {
			return "", fmt.Errorf("archiving %s: %w", a.name, err)
		}
	}

	dir := path.Join(RunsPrefix, id)
	w.logger.Info("run archived", zap.String("run_id", id), zap.String("path", dir))
	return dir, nil
}

// EncodeReturns renders the daily series as `date,return,turnover` CSV.
func EncodeReturns(res *backtest.Result) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"date", "return", "turnover"}); err != nil {
		return nil, err
	}
	if res != nil {
		for i, d := range res.Returns.Dates {
			rec := []string{
				d.Format(core.DateLayout),
				strconv.FormatFloat(res.Returns.Values[i], 'g', -1, 64),
				strconv.FormatFloat(res.Turnover[i], 'g', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return nil, err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("encoding returns: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadSummary loads the stats.json of a run.
func (w *Writer) ReadSummary(ctx context.Context, id string) (*Summary, error) {
	data, err := w.store.Read(ctx, runPath(id, StatsFile))
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("decoding %s: %w", StatsFile, err))
	}
	return &s, nil
}

// ReadSchedule loads the positions.json of a run.
func (w *Writer) ReadSchedule(ctx context.Context, id string) (*core.PositionSchedule, error) {
	data, err := w.store.Read(ctx, runPath(id, PositionsFile))
	if err != nil {
		return nil, err
	}
	sched := core.NewPositionSchedule()
	if err := json.Unmarshal(data, sched); err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("decoding %s: %w", PositionsFile, err))
	}
	return sched, nil
}

// ListRuns returns the ids of every run with a summary, oldest first.
func (w *Writer) ListRuns(ctx context.Context) ([]string, error) {
	paths, err := w.store.List(ctx, RunsPrefix)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, p := range paths {
		rest, ok := strings.CutPrefix(p, RunsPrefix+"/")
		if !ok {
			continue
		}
		id, file, ok := strings.Cut(rest, "/")
		if ok && file == StatsFile {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
