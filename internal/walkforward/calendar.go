package walkforward

import (
	"slices"
	"time"

	"github.com/newthinker/factorlab/internal/core"
)

// AddMonths shifts t by n calendar months, clipping the day to the end of the target
// month (Aug 31 + 6 months = Feb 28).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// AddYears shifts t by n calendar years with the same month-end clipping.
func AddYears(t time.Time, n int) time.Time {
	return AddMonths(t, 12*n)
}

// MonthEnds returns the last observed date of every calendar month in dates, ascending.
func MonthEnds(dates []time.Time) []time.Time {
	if len(dates) == 0 {
		return nil
	}
	sorted := make([]time.Time, len(dates))
	for i, d := range dates {
		sorted[i] = core.Day(d)
	}
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })
	sorted = slices.CompactFunc(sorted, func(a, b time.Time) bool { return a.Equal(b) })

	var out []time.Time
	for i, d := range sorted {
		if i == len(sorted)-1 {
			out = append(out, d)
			break
		}
		next := sorted[i+1]
		if next.Year() != d.Year() || next.Month() != d.Month() {
			out = append(out, d)
		}
	}
	return out
}
