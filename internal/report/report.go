// Package report renders run summaries as console tables.
package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/newthinker/factorlab/internal/backtest"
	"github.com/newthinker/factorlab/internal/core"
	"github.com/newthinker/factorlab/internal/storage/results"
)

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func ratio(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

type metric struct {
	name   string
	format func(backtest.Stats) string
}

var metrics = []metric{
	{"CAGR", func(s backtest.Stats) string { return pct(s.CAGR) }},
	{"Sharpe", func(s backtest.Stats) string { return ratio(s.Sharpe) }},
	{"Max drawdown", func(s backtest.Stats) string { return pct(s.MaxDD) }},
	{"Total return", func(s backtest.Stats) string { return pct(s.TotalReturn) }},
	{"Volatility", func(s backtest.Stats) string { return pct(s.Volatility) }},
	{"Hit rate", func(s backtest.Stats) string { return pct(s.HitRate) }},
	{"Avg turnover", func(s backtest.Stats) string { return pct(s.AvgTurnover) }},
	{"Days", func(s backtest.Stats) string { return fmt.Sprintf("%d", s.Days) }},
}

// StatsTable lays out strategy stats, with a benchmark column when one is present.
func StatsTable(s results.Summary) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Run %s (%s)", s.RunID, s.Model))

	header := table.Row{"Metric", "Strategy"}
	if s.Benchmark != nil {
		header = append(header, s.Benchmark.Ticker)
	}
	t.AppendHeader(header)

	for _, m := range metrics {
		row := table.Row{m.name, m.format(s.Strategy)}
		if s.Benchmark != nil {
			if m.name == "Avg turnover" {
				row = append(row, "-")
			} else {
				row = append(row, m.format(s.Benchmark.Stats))
			}
		}
		t.AppendRow(row)
	}

	t.AppendSeparator()
	t.AppendRow(table.Row{"Splits trained", s.Splits.Trained})
	t.AppendRow(table.Row{"Splits skipped", s.Splits.Skipped})
	t.AppendRow(table.Row{"Rebalances built", s.Splits.DatesBuilt})
	t.AppendRow(table.Row{"Rebalances skipped", s.Splits.DatesSkipped})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return t
}

// RunsTable lists archived runs, one row per summary.
func RunsTable(summaries []results.Summary) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetAutoIndex(true)
	t.AppendHeader(table.Row{"Run", "Created", "Model", "CAGR", "Sharpe", "Max DD"})
	for _, s := range summaries {
		t.AppendRow(table.Row{
			s.RunID,
			s.CreatedAt.Format(core.DateLayout),
			s.Model,
			pct(s.Strategy.CAGR),
			ratio(s.Strategy.Sharpe),
			pct(s.Strategy.MaxDD),
		})
	}
	return t
}

// Render writes the stats table of s to w.
func Render(w io.Writer, s results.Summary) error {
	_, err := fmt.Fprintln(w, StatsTable(s).Render())
	return err
}
