package walkforward

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/factorlab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monthEnds returns n consecutive calendar month-ends starting with the month of first.
func monthEnds(year int, month time.Month, n int) []time.Time {
	out := make([]time.Time, n)
	for k := range out {
		out[k] = time.Date(year, month+time.Month(k)+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func TestNewSplitter_Validation(t *testing.T) {
	_, err := NewSplitter(0, 6, 24)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = NewSplitter(5, 0, 24)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	s, err := NewSplitter(5, 6, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMinTrainDates, s.MinTrainDates)
}

func TestSplitter_MonthlySchedule(t *testing.T) {
	schedule := monthEnds(2010, time.January, 84)
	s, err := NewSplitter(5, 6, 24)
	require.NoError(t, err)

	splits, err := s.Split(schedule)
	require.NoError(t, err)
	require.Len(t, splits, 60)

	first := splits[0]
	assert.Equal(t, day("2012-01-31"), first.Cutoff())
	assert.Len(t, first.TrainDates, 24)
	assert.Len(t, first.TestDates, 6)
	assert.Equal(t, day("2012-06-30"), first.TestDates[5])

	last := splits[len(splits)-1]
	assert.Equal(t, []time.Time{day("2016-12-31")}, last.TestDates)

	for _, sp := range splits {
		maxTrain := sp.TrainDates[len(sp.TrainDates)-1]
		assert.True(t, maxTrain.Before(sp.TestDates[0]), "train must precede test")
		assert.GreaterOrEqual(t, len(sp.TrainDates), 24)
		assert.LessOrEqual(t, len(sp.TrainDates), 60)
		assert.False(t, sp.TrainDates[0].Before(AddYears(sp.Cutoff(), -5)))
		assert.True(t, sp.TestDates[len(sp.TestDates)-1].Before(AddMonths(sp.Cutoff(), 6)))
	}
}

func TestSplitter_WindowsClipToMonthEnd(t *testing.T) {
	schedule := monthEnds(2010, time.January, 84)
	s, err := NewSplitter(5, 6, 24)
	require.NoError(t, err)
	splits, err := s.Split(schedule)
	require.NoError(t, err)

	byCutoff := make(map[time.Time]Split, len(splits))
	for _, sp := range splits {
		byCutoff[sp.Cutoff()] = sp
	}

	// 2016-02-29 minus five years is 2011-02-28, which stays in the train window.
	leap := byCutoff[day("2016-02-29")]
	assert.Equal(t, day("2011-02-28"), leap.TrainDates[0])
	assert.Len(t, leap.TrainDates, 60)

	// 2012-08-31 plus six months is 2013-02-28, which is excluded from the test window.
	aug := byCutoff[day("2012-08-31")]
	assert.Len(t, aug.TestDates, 6)
	assert.Equal(t, day("2013-01-31"), aug.TestDates[5])
}

func TestSplitter_TooShortHistory(t *testing.T) {
	s, err := NewSplitter(5, 6, 24)
	require.NoError(t, err)

	splits, err := s.Split(monthEnds(2010, time.January, 24))
	require.NoError(t, err)
	assert.Empty(t, splits)

	splits, err = s.Split(nil)
	require.NoError(t, err)
	assert.Empty(t, splits)
}

func TestSplitter_RejectsUnsortedSchedule(t *testing.T) {
	s, err := NewSplitter(1, 1, 1)
	require.NoError(t, err)

	_, err = s.Split([]time.Time{day("2020-02-29"), day("2020-01-31")})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = s.Split([]time.Time{day("2020-01-31"), day("2020-01-31")})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}
