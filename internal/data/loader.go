// Package data loads feature and price panels from long-format CSV.
package data

import (
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/newthinker/factorlab/internal/core"
)

// Key columns shared by both inputs.
const (
	DateColumn   = "date"
	TickerColumn = "ticker"
)

// FeatureLoad describes a loaded feature panel.
type FeatureLoad struct {
	Panel   *core.FeaturePanel
	Rows    int // CSV rows read
	Dropped int // rows with a missing feature or target
}

type key struct {
	date   time.Time
	ticker string
}

func readFrame(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df, core.WrapError(core.ErrInvalidInput, df.Err)
	}
	return df, nil
}

func requireColumns(df dataframe.DataFrame, cols ...string) error {
	names := df.Names()
	for _, c := range cols {
		if !slices.Contains(names, c) {
			return core.Errorf(core.ErrInvalidInput, "missing column %q", c)
		}
	}
	return nil
}

func keys(df dataframe.DataFrame) ([]time.Time, []string, error) {
	raw := df.Col(DateColumn).Records()
	dates := make([]time.Time, len(raw))
	for i, s := range raw {
		d, err := core.ParseDay(s)
		if err != nil {
			return nil, nil, core.Errorf(core.ErrInvalidInput, "row %d: bad date %q", i+1, s)
		}
		dates[i] = d
	}
	return dates, df.Col(TickerColumn).Records(), nil
}

// LoadFeatures reads a `date,ticker,<features...>,<target>` table. With no feature
// columns given, every column except the keys and the target is a feature, in file order.
// Rows with any missing value are dropped. A repeated (date, ticker) is an error.
func LoadFeatures(r io.Reader, target string, featureCols []string) (*FeatureLoad, error) {
	df, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	if len(featureCols) == 0 {
		for _, name := range df.Names() {
			if name != DateColumn && name != TickerColumn && name != target {
				featureCols = append(featureCols, name)
			}
		}
	}
	if len(featureCols) == 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "no feature columns")
	}
	if err := requireColumns(df, append([]string{DateColumn, TickerColumn, target}, featureCols...)...); err != nil {
		return nil, err
	}

	dates, tickers, err := keys(df)
	if err != nil {
		return nil, err
	}
	cols := make([][]float64, len(featureCols))
	for k, name := range featureCols {
		cols[k] = df.Col(name).Float()
	}
	y := df.Col(target).Float()

	panel := core.NewFeaturePanel(featureCols)
	seen := make(map[key]struct{}, len(dates))
	out := &FeatureLoad{Panel: panel, Rows: len(dates)}
	row := make([]float64, len(featureCols))
	for i := range dates {
		k := key{dates[i], tickers[i]}
		if _, dup := seen[k]; dup {
			return nil, core.Errorf(core.ErrInvalidInput, "duplicate row for %s on %s", tickers[i], dates[i].Format(core.DateLayout))
		}
		seen[k] = struct{}{}

		for j := range cols {
			row[j] = cols[j][i]
		}
		if !panel.Add(dates[i], tickers[i], row, y[i]) {
			out.Dropped++
		}
	}
	return out, nil
}

// LoadPrices reads a `date,ticker,<priceCol>` table and pivots it into a wide panel.
// Tickers are sorted; absent observations are NaN.
func LoadPrices(r io.Reader, priceCol string) (*core.PricePanel, error) {
	df, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(df, DateColumn, TickerColumn, priceCol); err != nil {
		return nil, err
	}

	dates, tickers, err := keys(df)
	if err != nil {
		return nil, err
	}
	closes := df.Col(priceCol).Float()

	uniqDates := slices.Clone(dates)
	slices.SortFunc(uniqDates, func(a, b time.Time) int { return a.Compare(b) })
	uniqDates = slices.CompactFunc(uniqDates, func(a, b time.Time) bool { return a.Equal(b) })
	uniqTickers := slices.Clone(tickers)
	slices.Sort(uniqTickers)
	uniqTickers = slices.Compact(uniqTickers)

	rowOf := make(map[time.Time]int, len(uniqDates))
	for i, d := range uniqDates {
		rowOf[d] = i
	}
	colOf := make(map[string]int, len(uniqTickers))
	for j, t := range uniqTickers {
		colOf[t] = j
	}

	wide := make([][]float64, len(uniqDates))
	for i := range wide {
		wide[i] = make([]float64, len(uniqTickers))
		for j := range wide[i] {
			wide[i][j] = math.NaN()
		}
	}

	seen := make(map[key]struct{}, len(dates))
	for i := range dates {
		k := key{dates[i], tickers[i]}
		if _, dup := seen[k]; dup {
			return nil, core.Errorf(core.ErrInvalidInput, "duplicate price for %s on %s", tickers[i], dates[i].Format(core.DateLayout))
		}
		seen[k] = struct{}{}
		wide[rowOf[dates[i]]][colOf[tickers[i]]] = closes[i]
	}

	return core.NewPricePanel(uniqDates, uniqTickers, wide)
}

// LoadFeaturesFile opens path and calls LoadFeatures.
func LoadFeaturesFile(path, target string, featureCols []string) (*FeatureLoad, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening features: %w", err)
	}
	defer f.Close()
	return LoadFeatures(f, target, featureCols)
}

// LoadPricesFile opens path and calls LoadPrices.
func LoadPricesFile(path, priceCol string) (*core.PricePanel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening prices: %w", err)
	}
	defer f.Close()
	return LoadPrices(f, priceCol)
}
