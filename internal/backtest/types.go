package backtest

import (
	"github.com/newthinker/factorlab/internal/core"
)

// Result holds the complete simulation output
type Result struct {
	Returns     core.DailyReturns
	Turnover    []float64 // Per-day one-way turnover, aligned to Returns.Dates
	AvgTurnover float64
}

// Stats holds performance statistics
type Stats struct {
	CAGR        float64 `json:"cagr"`
	Sharpe      float64 `json:"sharpe"`
	MaxDD       float64 `json:"max_dd"` // Largest peak-to-trough decline, <= 0
	AvgTurnover float64 `json:"avg_turnover"`
	TotalReturn float64 `json:"total_return"`
	Volatility  float64 `json:"volatility"` // Annualized
	HitRate     float64 `json:"hit_rate"`   // Share of positive days
	Days        int     `json:"days"`
}

// Stats analyzes the return series and attaches the mean turnover.
func (r *Result) Stats(freq int) Stats {
	s := CalculateStats(r.Returns.Values, freq)
	s.AvgTurnover = r.AvgTurnover
	return s
}
