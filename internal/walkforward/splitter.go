// Package walkforward builds causal train/test splits and drives per-split retraining.
package walkforward

import (
	"fmt"
	"sort"
	"time"

	"github.com/newthinker/factorlab/internal/core"
)

// DefaultMinTrainDates is the smallest train window, in rebalance dates, worth fitting.
const DefaultMinTrainDates = 24

// Split is one train/test pair. Every train date precedes every test date.
type Split struct {
	TrainDates []time.Time
	TestDates  []time.Time
}

// Cutoff is the first test date; no training data is dated on or after it.
func (s Split) Cutoff() time.Time {
	return s.TestDates[0]
}

// Splitter partitions a rebalance schedule into sliding walk-forward splits.
type Splitter struct {
	TrainYears    int
	TestMonths    int
	MinTrainDates int
}

// NewSplitter validates the window lengths.
func NewSplitter(trainYears, testMonths, minTrainDates int) (*Splitter, error) {
	if trainYears < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("train_years must be >= 1, got %d", trainYears))
	}
	if testMonths < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("test_months must be >= 1, got %d", testMonths))
	}
	if minTrainDates < 1 {
		minTrainDates = DefaultMinTrainDates
	}
	return &Splitter{TrainYears: trainYears, TestMonths: testMonths, MinTrainDates: minTrainDates}, nil
}

// Split emits one split per schedule date d with train window [d-TrainYears, d) and
// test window [d, d+TestMonths). Dates whose train window holds fewer than
// MinTrainDates entries are skipped. The schedule must be strictly increasing.
func (s *Splitter) Split(schedule []time.Time) ([]Split, error) {
	for i := 1; i < len(schedule); i++ {
		if !schedule[i].After(schedule[i-1]) {
			return nil, core.Errorf(core.ErrInvalidInput, "rebalance schedule not strictly increasing at %s",
				schedule[i].Format(core.DateLayout))
		}
	}

	var splits []Split
	for i, d := range schedule {
		trainStart := lowerBound(schedule, AddYears(d, -s.TrainYears))
		testEnd := lowerBound(schedule, AddMonths(d, s.TestMonths))

		train := schedule[trainStart:i]
		test := schedule[i:testEnd]
		if len(train) < s.MinTrainDates || len(test) < 1 {
			continue
		}

		splits = append(splits, Split{
			TrainDates: append([]time.Time(nil), train...),
			TestDates:  append([]time.Time(nil), test...),
		})
	}
	return splits, nil
}

// lowerBound returns the first index i where dates[i] >= t.
func lowerBound(dates []time.Time, t time.Time) int {
	return sort.Search(len(dates), func(i int) bool { return !dates[i].Before(t) })
}
