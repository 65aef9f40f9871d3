package core

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFeaturePanel_AddDropsIncompleteRows(t *testing.T) {
	p := NewFeaturePanel([]string{"mom_21", "vol_21"})

	assert.True(t, p.Add(day("2020-01-31"), "AAPL", []float64{0.1, 0.2}, 0.05))
	assert.False(t, p.Add(day("2020-01-31"), "MSFT", []float64{math.NaN(), 0.2}, 0.05))
	assert.False(t, p.Add(day("2020-01-31"), "GOOG", []float64{0.1, 0.2}, math.NaN()))
	assert.False(t, p.Add(day("2020-01-31"), "AMZN", []float64{0.1}, 0.01))
	assert.False(t, p.Add(day("2020-01-31"), "", []float64{0.1, 0.2}, 0.01))
	assert.False(t, p.Add(day("2020-01-31"), "TSLA", []float64{math.Inf(1), 0.2}, 0.01))

	assert.Equal(t, 1, p.Len())
	rows := p.CrossSection(day("2020-01-31"))
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL", rows[0].Ticker)
}

func TestFeaturePanel_DatesSorted(t *testing.T) {
	p := NewFeaturePanel([]string{"f"})
	p.Add(day("2020-03-31"), "A", []float64{1}, 0)
	p.Add(day("2020-01-31"), "A", []float64{1}, 0)
	p.Add(day("2020-02-28"), "A", []float64{1}, 0)
	p.Add(day("2020-01-31"), "B", []float64{1}, 0)

	assert.Equal(t, []time.Time{day("2020-01-31"), day("2020-02-28"), day("2020-03-31")}, p.Dates())
	assert.Equal(t, 3, p.CountRows([]time.Time{day("2020-01-31"), day("2020-03-31")}))
}

func TestFeaturePanel_Design(t *testing.T) {
	p := NewFeaturePanel([]string{"a", "b"})
	p.Add(day("2020-01-31"), "X", []float64{1, 2}, 0.1)
	p.Add(day("2020-02-28"), "X", []float64{3, 4}, 0.2)
	p.Add(day("2020-02-28"), "Y", []float64{5, 6}, 0.3)

	X, y := p.Design([]time.Time{day("2020-02-28")})
	assert.Equal(t, [][]float64{{3, 4}, {5, 6}}, X)
	assert.Equal(t, []float64{0.2, 0.3}, y)
}

func TestNewPricePanel_Validation(t *testing.T) {
	dates := []time.Time{day("2020-01-01"), day("2020-01-02")}

	_, err := NewPricePanel(dates, []string{"A"}, [][]float64{{1}})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = NewPricePanel(dates, []string{"A"}, [][]float64{{1}, {1, 2}})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = NewPricePanel([]time.Time{day("2020-01-02"), day("2020-01-01")}, []string{"A"}, [][]float64{{1}, {1}})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	p, err := NewPricePanel(dates, []string{"A"}, [][]float64{{1}, {2}})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Column("A"))
	assert.Equal(t, -1, p.Column("B"))
}

func TestPricePanel_Returns(t *testing.T) {
	dates := []time.Time{day("2020-01-01"), day("2020-01-02"), day("2020-01-03"), day("2020-01-06")}
	p, err := NewPricePanel(dates, []string{"A", "B"}, [][]float64{
		{100, 50},
		{110, math.NaN()},
		{99, 52},
		{99, 0},
	})
	require.NoError(t, err)

	r := p.Returns()
	assert.True(t, math.IsNaN(r[0][0]))
	assert.True(t, math.IsNaN(r[0][1]))
	assert.InDelta(t, 0.10, r[1][0], 1e-12)
	assert.True(t, math.IsNaN(r[1][1]), "missing close makes the return undefined")
	assert.InDelta(t, -0.10, r[2][0], 1e-12)
	assert.True(t, math.IsNaN(r[2][1]), "return after a missing close is undefined")
	assert.InDelta(t, 0, r[3][0], 1e-12)
	assert.True(t, math.IsNaN(r[3][1]), "non-positive close is treated as missing")
}

func TestWeightVector_Sums(t *testing.T) {
	w := WeightVector{"A": 0.5, "B": 0.5, "C": -1, "D": 0}
	assert.InDelta(t, 1.0, w.LongSum(), 1e-12)
	assert.InDelta(t, -1.0, w.ShortSum(), 1e-12)

	longs, shorts := w.Legs()
	assert.Equal(t, 2, longs)
	assert.Equal(t, 1, shorts)
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("X", 5*3600)
	got := Day(time.Date(2021, 6, 30, 23, 59, 0, 0, loc))
	assert.Equal(t, time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC), got)
}
