package data

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/factorlab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const featuresCSV = `date,ticker,mom_21,vol_63,y_fwd_3m
2024-01-31,AAA,0.1,0.2,0.05
2024-01-31,BBB,0.3,,0.01
2024-01-31,CCC,-0.2,0.4,-0.03
2024-02-29,AAA,0.15,0.25,NaN
2024-02-29,BBB,0.05,0.1,0.02
`

func TestLoadFeatures_InfersColumns(t *testing.T) {
	load, err := LoadFeatures(strings.NewReader(featuresCSV), "y_fwd_3m", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"mom_21", "vol_63"}, load.Panel.FeatureNames())
	assert.Equal(t, 5, load.Rows)
	assert.Equal(t, 2, load.Dropped)
	assert.Equal(t, 3, load.Panel.Len())

	jan := load.Panel.CrossSection(mustDay(t, "2024-01-31"))
	require.Len(t, jan, 2)
	assert.Equal(t, "AAA", jan[0].Ticker)
	assert.Equal(t, []float64{0.1, 0.2}, jan[0].Features)
	assert.Equal(t, 0.05, jan[0].Target)
}

func TestLoadFeatures_ExplicitColumns(t *testing.T) {
	load, err := LoadFeatures(strings.NewReader(featuresCSV), "y_fwd_3m", []string{"mom_21"})
	require.NoError(t, err)

	assert.Equal(t, []string{"mom_21"}, load.Panel.FeatureNames())
	// Only the NaN target is dropped when vol_63 is not used.
	assert.Equal(t, 1, load.Dropped)
}

func TestLoadFeatures_Errors(t *testing.T) {
	tests := []struct {
		name   string
		csv    string
		target string
		cols   []string
	}{
		{"missing target", featuresCSV, "y_fwd_1m", nil},
		{"missing feature", featuresCSV, "y_fwd_3m", []string{"beta"}},
		{"missing ticker", "date,x,y\n2024-01-31,1,2\n", "y", nil},
		{"bad date", "date,ticker,x,y\n31/01/2024,A,1,2\n", "y", nil},
		{"duplicate row", "date,ticker,x,y\n2024-01-31,A,1,2\n2024-01-31,A,3,4\n", "y", nil},
		{"no features", "date,ticker,y\n2024-01-31,A,1\n", "y", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFeatures(strings.NewReader(tt.csv), tt.target, tt.cols)
			assert.True(t, errors.Is(err, core.ErrInvalidInput), "got %v", err)
		})
	}
}

const pricesCSV = `date,ticker,close,volume
2024-01-03,BBB,50,100
2024-01-02,AAA,100,100
2024-01-02,BBB,49,100
2024-01-03,AAA,110,100
2024-01-04,AAA,99,100
`

func TestLoadPrices_Pivots(t *testing.T) {
	p, err := LoadPrices(strings.NewReader(pricesCSV), "close")
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, p.Tickers)
	require.Len(t, p.Dates, 3)
	assert.Equal(t, mustDay(t, "2024-01-02"), p.Dates[0])
	assert.Equal(t, []float64{100, 49}, p.Close[0])
	assert.Equal(t, []float64{110, 50}, p.Close[1])
	assert.Equal(t, 99.0, p.Close[2][0])
	assert.True(t, math.IsNaN(p.Close[2][1]))
}

func TestLoadPrices_Errors(t *testing.T) {
	_, err := LoadPrices(strings.NewReader(pricesCSV), "adj_close")
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	dup := "date,ticker,close\n2024-01-02,A,1\n2024-01-02,A,2\n"
	_, err = LoadPrices(strings.NewReader(dup), "close")
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "features.csv")
	pp := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(fp, []byte(featuresCSV), 0644))
	require.NoError(t, os.WriteFile(pp, []byte(pricesCSV), 0644))

	load, err := LoadFeaturesFile(fp, "y_fwd_3m", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, load.Panel.Len())

	prices, err := LoadPricesFile(pp, "close")
	require.NoError(t, err)
	assert.Len(t, prices.Tickers, 2)

	_, err = LoadPricesFile(filepath.Join(dir, "missing.csv"), "close")
	assert.Error(t, err)
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := core.ParseDay(s)
	require.NoError(t, err)
	return d
}
