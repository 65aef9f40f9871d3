package backtest

import (
	"context"
	"math"

	"github.com/newthinker/factorlab/internal/core"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultTCBps is the default one-way transaction cost in basis points.
const DefaultTCBps = 5.0

// Simulator replays a position schedule against daily close prices.
type Simulator struct {
	tcBps  float64
	logger *zap.Logger
}

// NewSimulator creates a simulator charging tcBps per unit of turnover.
func NewSimulator(tcBps float64, logger ...*zap.Logger) *Simulator {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Simulator{tcBps: tcBps, logger: l}
}

// Run produces the daily net return series over every date of the price panel.
//
// The schedule is projected onto the daily index as a step function. Weights chosen on
// day t are held from day t+1, so the return of day t uses the projection of day t-1.
// Turnover is charged on the day the held weights change.
func (s *Simulator) Run(ctx context.Context, prices *core.PricePanel, sched *core.PositionSchedule) (*Result, error) {
	if prices == nil || len(prices.Dates) == 0 || len(prices.Tickers) == 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "price panel is empty")
	}
	if sched == nil || sched.Len() == 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "position schedule is empty")
	}

	step := sched.Freeze()
	rets := prices.Returns()
	cols := make(map[string]int, len(prices.Tickers))
	for j, t := range prices.Tickers {
		cols[t] = j
	}

	n, m := len(prices.Dates), len(prices.Tickers)
	values := make([]float64, n)
	turnover := make([]float64, n)
	cost := s.tcBps / 10_000

	projected := make([]float64, m) // projection of the previous day
	held := make([]float64, m)
	prevHeld := make([]float64, m)
	row := make([]float64, m)

	for i, d := range prices.Dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		copy(held, projected)
		turnover[i] = floats.Distance(held, prevHeld, 1) / 2

		for j, r := range rets[i] {
			if math.IsNaN(r) {
				r = 0
			}
			row[j] = r
		}
		values[i] = floats.Dot(held, row) - turnover[i]*cost

		clear(projected)
		if w, ok := step.AsOf(d); ok {
			for ticker, v := range w {
				if j, ok := cols[ticker]; ok {
					projected[j] = v
				}
			}
		}
		held, prevHeld = prevHeld, held
	}

	res := &Result{
		Returns:     core.DailyReturns{Dates: append(prices.Dates[:0:0], prices.Dates...), Values: values},
		Turnover:    turnover,
		AvgTurnover: stat.Mean(turnover, nil),
	}

	s.logger.Debug("simulation finished",
		zap.Int("days", n),
		zap.Int("tickers", m),
		zap.Int("rebalances", step.Len()),
		zap.Float64("avg_turnover", res.AvgTurnover),
	)
	return res, nil
}
