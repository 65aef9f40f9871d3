package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/factorlab/internal/core"
)

func days(n int) []time.Time {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func mustPanel(t *testing.T, dates []time.Time, tickers []string, closes [][]float64) *core.PricePanel {
	t.Helper()
	p, err := core.NewPricePanel(dates, tickers, closes)
	if err != nil {
		t.Fatalf("NewPricePanel: %v", err)
	}
	return p
}

func scheduleOf(entries map[time.Time]core.WeightVector) *core.PositionSchedule {
	s := core.NewPositionSchedule()
	for d, w := range entries {
		s.Set(d, w)
	}
	return s
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSimulator_LagAndCost(t *testing.T) {
	d := days(3)
	prices := mustPanel(t, d, []string{"A", "B"}, [][]float64{
		{100, 50},
		{110, 49},
		{99, 52},
	})
	sched := scheduleOf(map[time.Time]core.WeightVector{
		d[0]: {"A": 0.5, "B": 0.5},
	})

	res, err := NewSimulator(5).Run(context.Background(), prices, sched)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []float64{
		0,
		0.5*0.10 + 0.5*(-0.02) - 0.00025,
		0.5*(99.0/110-1) + 0.5*(52.0/49-1),
	}
	for i, w := range want {
		if !approx(res.Returns.Values[i], w) {
			t.Errorf("day %d return = %f, want %f", i, res.Returns.Values[i], w)
		}
	}
	if !approx(res.Returns.Values[1], 0.03975) {
		t.Errorf("day 1 return = %f, want 0.03975", res.Returns.Values[1])
	}

	wantTurnover := []float64{0, 0.5, 0}
	for i, w := range wantTurnover {
		if !approx(res.Turnover[i], w) {
			t.Errorf("day %d turnover = %f, want %f", i, res.Turnover[i], w)
		}
	}
	if !approx(res.AvgTurnover, 0.5/3) {
		t.Errorf("AvgTurnover = %f, want %f", res.AvgTurnover, 0.5/3)
	}
	if len(res.Returns.Dates) != 3 || !res.Returns.Dates[2].Equal(d[2]) {
		t.Errorf("unexpected return dates %v", res.Returns.Dates)
	}
}

func TestSimulator_ZeroWeightsZeroReturns(t *testing.T) {
	d := days(4)
	prices := mustPanel(t, d, []string{"A", "B"}, [][]float64{
		{10, 20},
		{11, 18},
		{9, 25},
		{12, 22},
	})
	sched := core.NewPositionSchedule()
	for _, day := range d {
		sched.Set(day, core.WeightVector{"A": 0, "B": 0})
	}

	res, err := NewSimulator(5).Run(context.Background(), prices, sched)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, v := range res.Returns.Values {
		if v != 0 {
			t.Errorf("day %d return = %f, want 0", i, v)
		}
		if res.Turnover[i] != 0 {
			t.Errorf("day %d turnover = %f, want 0", i, res.Turnover[i])
		}
	}
}

func TestSimulator_RebalanceTurnover(t *testing.T) {
	d := days(4)
	prices := mustPanel(t, d, []string{"A", "B"}, [][]float64{
		{100, 100},
		{100, 100},
		{100, 100},
		{100, 100},
	})
	sched := scheduleOf(map[time.Time]core.WeightVector{
		d[0]: {"A": 1},
		d[1]: {"B": 1},
	})

	res, err := NewSimulator(10).Run(context.Background(), prices, sched)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantTurnover := []float64{0, 0.5, 1, 0}
	for i, w := range wantTurnover {
		if !approx(res.Turnover[i], w) {
			t.Errorf("day %d turnover = %f, want %f", i, res.Turnover[i], w)
		}
		if !approx(res.Returns.Values[i], -w*0.001) {
			t.Errorf("day %d return = %f, want %f", i, res.Returns.Values[i], -w*0.001)
		}
	}
}

func TestSimulator_FlatBeforeFirstEntry(t *testing.T) {
	d := days(4)
	prices := mustPanel(t, d, []string{"A"}, [][]float64{{100}, {200}, {100}, {110}})
	sched := scheduleOf(map[time.Time]core.WeightVector{
		d[2]: {"A": 1},
	})

	res, err := NewSimulator(0).Run(context.Background(), prices, sched)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []float64{0, 0, 0, 0.1}
	for i, w := range want {
		if !approx(res.Returns.Values[i], w) {
			t.Errorf("day %d return = %f, want %f", i, res.Returns.Values[i], w)
		}
	}
}

func TestSimulator_MissingPricesAndUnknownTickers(t *testing.T) {
	d := days(3)
	nan := math.NaN()
	prices := mustPanel(t, d, []string{"A", "B"}, [][]float64{
		{100, 50},
		{nan, 55},
		{120, 0},
	})
	sched := scheduleOf(map[time.Time]core.WeightVector{
		d[0]: {"A": 0.5, "B": 0.5, "ZZZ": -1},
	})

	res, err := NewSimulator(0).Run(context.Background(), prices, sched)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Day 1: A is missing, B returns 10%. Day 2: A has no prior close, B is non-positive.
	want := []float64{0, 0.05, 0}
	for i, w := range want {
		if !approx(res.Returns.Values[i], w) {
			t.Errorf("day %d return = %f, want %f", i, res.Returns.Values[i], w)
		}
	}
	if !approx(res.Turnover[1], 0.5) {
		t.Errorf("turnover ignores unknown tickers, got %f", res.Turnover[1])
	}
}

func TestSimulator_InvalidInput(t *testing.T) {
	d := days(2)
	prices := mustPanel(t, d, []string{"A"}, [][]float64{{1}, {2}})
	sim := NewSimulator(5)

	if _, err := sim.Run(context.Background(), prices, core.NewPositionSchedule()); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("empty schedule: got %v", err)
	}

	sched := scheduleOf(map[time.Time]core.WeightVector{d[0]: {"A": 1}})
	empty := mustPanel(t, nil, nil, nil)
	if _, err := sim.Run(context.Background(), empty, sched); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("empty prices: got %v", err)
	}
	if _, err := sim.Run(context.Background(), nil, sched); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("nil prices: got %v", err)
	}
}

func TestSimulator_ContextCancellation(t *testing.T) {
	d := days(2)
	prices := mustPanel(t, d, []string{"A"}, [][]float64{{1}, {2}})
	sched := scheduleOf(map[time.Time]core.WeightVector{d[0]: {"A": 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewSimulator(5).Run(ctx, prices, sched); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
