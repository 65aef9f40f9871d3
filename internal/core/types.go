package core

import (
	"math"
	"slices"
	"sort"
	"time"
)

// DateLayout is the calendar date format used on every input and output.
const DateLayout = "2006-01-02"

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FeatureRow is one complete (ticker, features, target) observation of a cross-section.
type FeatureRow struct {
	Ticker   string
	Features []float64
	Target   float64
}

// FeaturePanel holds complete feature rows keyed by (date, ticker).
// Populate with Add, then treat as read-only; reads are safe for concurrent use.
type FeaturePanel struct {
	names []string
	rows  map[time.Time][]FeatureRow
	dates []time.Time
	count int
}

// NewFeaturePanel creates an empty panel with a fixed ordered feature list.
func NewFeaturePanel(featureNames []string) *FeaturePanel {
	return &FeaturePanel{
		names: slices.Clone(featureNames),
		rows:  make(map[time.Time][]FeatureRow),
	}
}

// FeatureNames returns the ordered feature column names.
func (p *FeaturePanel) FeatureNames() []string {
	return slices.Clone(p.names)
}

// Add inserts a row. Rows with a missing feature or target are dropped and Add returns false.
func (p *FeaturePanel) Add(date time.Time, ticker string, features []float64, target float64) bool {
	if ticker == "" || len(features) != len(p.names) || !IsFinite(target) {
		return false
	}
	for _, v := range features {
		if !IsFinite(v) {
			return false
		}
	}

	d := Day(date)
	if _, ok := p.rows[d]; !ok {
		i := sort.Search(len(p.dates), func(i int) bool { return !p.dates[i].Before(d) })
		p.dates = slices.Insert(p.dates, i, d)
	}
	p.rows[d] = append(p.rows[d], FeatureRow{
		Ticker:   ticker,
		Features: slices.Clone(features),
		Target:   target,
	})
	p.count++
	return true
}

// Dates returns the panel's distinct dates in ascending order.
func (p *FeaturePanel) Dates() []time.Time {
	return slices.Clone(p.dates)
}

// Len returns the number of complete rows.
func (p *FeaturePanel) Len() int {
	return p.count
}

// CrossSection returns the complete rows observed on date.
func (p *FeaturePanel) CrossSection(date time.Time) []FeatureRow {
	return p.rows[Day(date)]
}

// CountRows returns how many complete rows fall on the given dates.
func (p *FeaturePanel) CountRows(dates []time.Time) int {
	n := 0
	for _, d := range dates {
		n += len(p.rows[Day(d)])
	}
	return n
}

// Design stacks the rows of the given dates into a feature matrix and target vector.
func (p *FeaturePanel) Design(dates []time.Time) ([][]float64, []float64) {
	n := p.CountRows(dates)
	X := make([][]float64, 0, n)
	y := make([]float64, 0, n)
	for _, d := range dates {
		for _, r := range p.rows[Day(d)] {
			X = append(X, r.Features)
			y = append(y, r.Target)
		}
	}
	return X, y
}

// PricePanel is a wide close-price table: Close[i][j] is the close of Tickers[j] on Dates[i].
// NaN marks a missing price.
type PricePanel struct {
	Dates   []time.Time
	Tickers []string
	Close   [][]float64
}

// NewPricePanel validates shape and ordering and returns the panel.
func NewPricePanel(dates []time.Time, tickers []string, closes [][]float64) (*PricePanel, error) {
	if len(closes) != len(dates) {
		return nil, Errorf(ErrInvalidInput, "price rows %d do not match dates %d", len(closes), len(dates))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, Errorf(ErrInvalidInput, "price dates not strictly increasing at %s", dates[i].Format(DateLayout))
		}
	}
	for i, row := range closes {
		if len(row) != len(tickers) {
			return nil, Errorf(ErrInvalidInput, "price row %d has %d columns, want %d", i, len(row), len(tickers))
		}
	}
	return &PricePanel{Dates: dates, Tickers: tickers, Close: closes}, nil
}

// Column returns the index of ticker, or -1.
func (p *PricePanel) Column(ticker string) int {
	for j, t := range p.Tickers {
		if t == ticker {
			return j
		}
	}
	return -1
}

// Returns computes simple daily returns per ticker. A return is NaN on the first day and
// wherever either of the two closes is missing or non-positive.
func (p *PricePanel) Returns() [][]float64 {
	out := make([][]float64, len(p.Dates))
	for i := range p.Dates {
		out[i] = make([]float64, len(p.Tickers))
		for j := range p.Tickers {
			if i == 0 {
				out[i][j] = math.NaN()
				continue
			}
			prev, cur := p.Close[i-1][j], p.Close[i][j]
			if !IsFinite(prev) || !IsFinite(cur) || prev <= 0 || cur <= 0 {
				out[i][j] = math.NaN()
				continue
			}
			out[i][j] = cur/prev - 1
		}
	}
	return out
}

// WeightVector maps ticker to signed portfolio weight for one rebalance date.
type WeightVector map[string]float64

// LongSum returns the sum of positive weights.
func (w WeightVector) LongSum() float64 {
	var s float64
	for _, v := range w {
		if v > 0 {
			s += v
		}
	}
	return s
}

// ShortSum returns the sum of negative weights.
func (w WeightVector) ShortSum() float64 {
	var s float64
	for _, v := range w {
		if v < 0 {
			s += v
		}
	}
	return s
}

// Legs counts long and short members.
func (w WeightVector) Legs() (longs, shorts int) {
	for _, v := range w {
		switch {
		case v > 0:
			longs++
		case v < 0:
			shorts++
		}
	}
	return longs, shorts
}

// DailyReturns is a return series aligned to trading dates.
type DailyReturns struct {
	Dates  []time.Time
	Values []float64
}

// Len returns the number of observations.
func (r DailyReturns) Len() int {
	return len(r.Values)
}
