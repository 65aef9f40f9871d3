package backtest

import (
	"math"
	"slices"
	"time"

	"github.com/newthinker/factorlab/internal/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultFreq is the number of trading days per year used to annualize.
const DefaultFreq = 252

// sharpeEpsilon keeps the Sharpe ratio finite for near-constant series.
const sharpeEpsilon = 1e-12

// CalculateStats computes performance statistics from a daily return series.
// NaN observations are dropped; an empty series yields zeroed stats.
func CalculateStats(returns []float64, freq int) Stats {
	if freq <= 0 {
		freq = DefaultFreq
	}
	r := slices.DeleteFunc(slices.Clone(returns), math.IsNaN)
	if len(r) == 0 {
		return Stats{}
	}

	equity := calculateEquity(r)
	final := equity[len(equity)-1]

	var positive int
	for _, v := range r {
		if v > 0 {
			positive++
		}
	}

	stats := Stats{
		TotalReturn: final - 1,
		MaxDD:       calculateMaxDrawdown(equity),
		HitRate:     float64(positive) / float64(len(r)),
		Days:        len(r),
	}

	years := float64(len(r)) / float64(freq)
	switch {
	case final <= 0:
		stats.CAGR = -1
	default:
		stats.CAGR = math.Pow(final, 1/years) - 1
	}

	if len(r) >= 2 && floats.Max(r) != floats.Min(r) {
		mean, std := stat.MeanStdDev(r, nil)
		stats.Sharpe = mean / (std + sharpeEpsilon) * math.Sqrt(float64(freq))
		stats.Volatility = std * math.Sqrt(float64(freq))
	}

	return stats
}

// calculateEquity compounds returns into an equity curve starting from 1.
func calculateEquity(returns []float64) []float64 {
	growth := make([]float64, len(returns))
	for i, r := range returns {
		growth[i] = 1 + r
	}
	return floats.CumProd(growth, growth)
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of the equity curve as a
// non-positive fraction.
func calculateMaxDrawdown(equity []float64) float64 {
	var maxDD float64
	peak := equity[0]
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if dd := e/peak - 1; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// AlignedReturns computes the daily returns of one ticker's closes sampled on the given
// dates. Dates without a usable close produce NaN, as does the first date.
func AlignedReturns(prices *core.PricePanel, ticker string, dates []time.Time) (core.DailyReturns, error) {
	if prices == nil {
		return core.DailyReturns{}, core.Errorf(core.ErrInvalidInput, "benchmark prices are empty")
	}
	j := prices.Column(ticker)
	if j < 0 {
		return core.DailyReturns{}, core.Errorf(core.ErrInvalidInput, "benchmark ticker %q not in price panel", ticker)
	}

	byDate := make(map[time.Time]float64, len(prices.Dates))
	for i, d := range prices.Dates {
		byDate[core.Day(d)] = prices.Close[i][j]
	}

	values := make([]float64, len(dates))
	prev := math.NaN()
	for i, d := range dates {
		cur, ok := byDate[core.Day(d)]
		if !ok || !core.IsFinite(cur) || cur <= 0 {
			cur = math.NaN()
		}
		if math.IsNaN(prev) || math.IsNaN(cur) {
			values[i] = math.NaN()
		} else {
			values[i] = cur/prev - 1
		}
		prev = cur
	}

	return core.DailyReturns{Dates: slices.Clone(dates), Values: values}, nil
}
