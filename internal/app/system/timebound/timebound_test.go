package timebound_test

import (
	"math"
	"testing"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/timebound"
	"github.com/dalemusser/prephub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func endOfDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

func TestTaskDayWindow(t *testing.T) {
	cal := timebound.Default()
	now := utc(2025, time.March, 5, 10, 0)

	assert.Equal(t, utc(2025, time.March, 5, 0, 0), cal.StartOfTaskDay(now))
	assert.Equal(t, endOfDay(2025, time.March, 5), cal.EndOfTaskDay(now))
	assert.Equal(t, endOfDay(2025, time.March, 5), cal.TodayDueAt(now))
}

func TestTodayDueAt_ExactBoundaryRollsForward(t *testing.T) {
	cal := timebound.Default()
	now := endOfDay(2025, time.March, 5)

	assert.Equal(t, endOfDay(2025, time.March, 6), cal.TodayDueAt(now))
}

func TestWeekDueAt(t *testing.T) {
	cal := timebound.Default()
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"wednesday", utc(2025, time.March, 5, 10, 0), endOfDay(2025, time.March, 9)},
		{"thursday late", utc(2025, time.March, 6, 23, 0), endOfDay(2025, time.March, 9)},
		{"friday skips a week", utc(2025, time.March, 7, 1, 0), endOfDay(2025, time.March, 16)},
		{"saturday skips a week", utc(2025, time.March, 8, 22, 0), endOfDay(2025, time.March, 16)},
		{"sunday is due the same night", utc(2025, time.March, 9, 0, 0), endOfDay(2025, time.March, 9)},
		{"sunday at the boundary rolls forward", endOfDay(2025, time.March, 9), endOfDay(2025, time.March, 16)},
		{"monday", utc(2025, time.March, 10, 0, 0), endOfDay(2025, time.March, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.WeekDueAt(tt.now))
		})
	}
}

func TestNextWeekDueAt(t *testing.T) {
	cal := timebound.Default()

	assert.Equal(t, endOfDay(2025, time.March, 16), cal.NextWeekDueAt(utc(2025, time.March, 5, 10, 0)))
	assert.Equal(t, endOfDay(2025, time.March, 16), cal.NextWeekDueAt(utc(2025, time.March, 8, 10, 0)))
	assert.Equal(t, endOfDay(2025, time.March, 16), cal.NextWeekDueAt(utc(2025, time.March, 9, 10, 0)))
}

// Every hour across two weeks, one second past the hour: Fri/Sat land more than 7 and
// at most 14 days out, every other day lands within the next 7 days.
func TestWeekDueAt_WindowProperty(t *testing.T) {
	cal := timebound.Default()
	start := utc(2025, time.March, 3, 0, 0).Add(time.Second)
	week := 7 * 24 * time.Hour

	for h := 0; h < 14*24; h++ {
		now := start.Add(time.Duration(h) * time.Hour)
		due := cal.WeekDueAt(now)

		require.True(t, due.After(now), "due %v not after %v", due, now)
		require.Equal(t, time.Sunday, due.Weekday())

		ahead := due.Sub(now)
		if timebound.IsLateWeek(now) {
			assert.Greater(t, ahead, week, "now=%v", now)
			assert.LessOrEqual(t, ahead, 2*week, "now=%v", now)
		} else {
			assert.LessOrEqual(t, ahead, week, "now=%v", now)
		}
	}
}

func TestMonthBoundaries(t *testing.T) {
	cal := timebound.Default()
	mid := utc(2025, time.March, 15, 12, 0)

	assert.Equal(t, time.Date(2025, time.February, 28, 18, 30, 0, 0, time.UTC), cal.StartOfMonth(mid))
	assert.Equal(t, time.Date(2025, time.March, 31, 18, 29, 59, int(999*time.Millisecond), time.UTC), cal.MonthDueAt(mid))
	assert.Equal(t, "2025-03", cal.MonthKey(mid))
}

func TestMonthBoundaries_UseCivilZone(t *testing.T) {
	cal := timebound.Default()
	// 20:00 UTC on March 31 is already April 1 in IST.
	now := utc(2025, time.March, 31, 20, 0)

	assert.Equal(t, "2025-04", cal.MonthKey(now))
	assert.Equal(t, time.Date(2025, time.April, 30, 18, 29, 59, int(999*time.Millisecond), time.UTC), cal.MonthDueAt(now))
	assert.Equal(t, time.Date(2025, time.March, 31, 18, 30, 0, 0, time.UTC), cal.StartOfMonth(now))
}

func TestMonthDueAt_ExactBoundaryRollsForward(t *testing.T) {
	cal := timebound.Default()
	now := time.Date(2025, time.March, 31, 18, 29, 59, int(999*time.Millisecond), time.UTC)

	assert.Equal(t, time.Date(2025, time.April, 30, 18, 29, 59, int(999*time.Millisecond), time.UTC), cal.MonthDueAt(now))
}

func TestDueAt(t *testing.T) {
	cal := timebound.Default()
	now := utc(2025, time.March, 5, 10, 0)

	assert.Equal(t, cal.TodayDueAt(now), cal.DueAt(models.BucketToday, now))
	assert.Equal(t, cal.WeekDueAt(now), cal.DueAt(models.BucketWeek, now))
	assert.Equal(t, cal.MonthDueAt(now), cal.DueAt(models.BucketMonth, now))
}

func TestFromEpochSeconds(t *testing.T) {
	got, err := timebound.FromEpochSeconds(1741168800)
	require.NoError(t, err)
	assert.Equal(t, utc(2025, time.March, 5, 10, 0), got)

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0, -5, 1e12} {
		_, err := timebound.FromEpochSeconds(bad)
		assert.ErrorIs(t, err, timebound.ErrInvalidTime, "input %v", bad)
	}
}

func TestCheck(t *testing.T) {
	assert.ErrorIs(t, timebound.Check(time.Time{}), timebound.ErrInvalidTime)
	assert.NoError(t, timebound.Check(utc(2025, time.March, 5, 10, 0)))
}

func TestFixedClock(t *testing.T) {
	c := timebound.NewFixedClock(utc(2025, time.March, 5, 10, 0))
	c.Advance(90 * time.Minute)
	assert.Equal(t, utc(2025, time.March, 5, 11, 30), c.Now())

	c.Set(utc(2025, time.March, 9, 0, 0))
	assert.Equal(t, time.Sunday, c.Now().Weekday())
}
