package core

import (
	"encoding/json"
	"slices"
	"sort"
	"sync"
	"time"
)

type scheduleEntry struct {
	weights WeightVector
	cutoff  time.Time
}

// PositionSchedule maps rebalance dates to weight vectors. It is safe for concurrent use.
type PositionSchedule struct {
	mu      sync.RWMutex
	entries map[time.Time]scheduleEntry
}

// NewPositionSchedule creates an empty schedule.
func NewPositionSchedule() *PositionSchedule {
	return &PositionSchedule{entries: make(map[time.Time]scheduleEntry)}
}

// Set stores w for date, replacing any existing entry.
func (s *PositionSchedule) Set(date time.Time, w WeightVector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[Day(date)] = scheduleEntry{weights: w}
}

// Merge stores w for date unless the existing entry came from a model with a later
// training cutoff. Equal cutoffs keep the existing entry. The result does not depend on
// the order in which concurrent splits call Merge.
func (s *PositionSchedule) Merge(date time.Time, w WeightVector, cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := Day(date)
	if cur, ok := s.entries[d]; ok && !cutoff.After(cur.cutoff) {
		return false
	}
	s.entries[d] = scheduleEntry{weights: w, cutoff: cutoff}
	return true
}

// Get returns the vector stored for date.
func (s *PositionSchedule) Get(date time.Time) (WeightVector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[Day(date)]
	return e.weights, ok
}

// Len returns the number of scheduled dates.
func (s *PositionSchedule) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dates returns the scheduled dates in ascending order.
func (s *PositionSchedule) Dates() []time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates := make([]time.Time, 0, len(s.entries))
	for d := range s.entries {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return dates
}

// Freeze returns a read-only step-function view of the schedule.
func (s *PositionSchedule) Freeze() *StepSchedule {
	dates := s.Dates()

	s.mu.RLock()
	defer s.mu.RUnlock()
	weights := make([]WeightVector, len(dates))
	for i, d := range dates {
		weights[i] = s.entries[d].weights
	}
	return &StepSchedule{dates: dates, weights: weights}
}

// AsOf returns the most recent vector scheduled on or before date.
func (s *PositionSchedule) AsOf(date time.Time) (WeightVector, bool) {
	return s.Freeze().AsOf(date)
}

type scheduleJSON struct {
	Date    string       `json:"date"`
	Weights WeightVector `json:"weights"`
}

// MarshalJSON encodes the schedule as a date-ordered list.
func (s *PositionSchedule) MarshalJSON() ([]byte, error) {
	frozen := s.Freeze()
	out := make([]scheduleJSON, len(frozen.dates))
	for i, d := range frozen.dates {
		out[i] = scheduleJSON{Date: d.Format(DateLayout), Weights: frozen.weights[i]}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a list produced by MarshalJSON.
func (s *PositionSchedule) UnmarshalJSON(data []byte) error {
	var in []scheduleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	entries := make(map[time.Time]scheduleEntry, len(in))
	for _, e := range in {
		d, err := ParseDay(e.Date)
		if err != nil {
			return Errorf(ErrInvalidInput, "schedule date %q: %v", e.Date, err)
		}
		entries[d] = scheduleEntry{weights: e.Weights}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	return nil
}

// StepSchedule is an immutable, date-sorted schedule evaluated as a left-continuous
// step function.
type StepSchedule struct {
	dates   []time.Time
	weights []WeightVector
}

// Len returns the number of steps.
func (s *StepSchedule) Len() int {
	return len(s.dates)
}

// AsOf returns the vector of the latest step at or before date. It returns false
// before the first step.
func (s *StepSchedule) AsOf(date time.Time) (WeightVector, bool) {
	d := Day(date)
	i := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(d) })
	if i == 0 {
		return nil, false
	}
	return s.weights[i-1], true
}
