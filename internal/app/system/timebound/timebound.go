// Package timebound centralizes the calendar math behind the revision buckets.
//
// Two calendars are in play:
//   - The task day, which resets at UTC midnight (05:30 in IST). "today" and
//     "week" boundaries are computed on UTC calendar days.
//   - The civil month in the archive zone (IST, fixed UTC+05:30, no DST).
//     "month" boundaries and archive month keys use it.
//
// Every function is pure. A computed due instant equal to now counts as
// already past, so the result always lies strictly after now.
package timebound

import (
	"errors"
	"math"
	"time"

	"github.com/dalemusser/prephub/internal/domain/models"
)

// ErrInvalidTime is returned for instants that cannot be placed on a calendar.
var ErrInvalidTime = errors.New("timebound: invalid time")

// ArchiveZone is the fixed civil zone used for month boundaries.
var ArchiveZone = time.FixedZone("IST", 5*60*60+30*60)

// MonthKeyLayout formats archive month keys.
const MonthKeyLayout = "2006-01"

// maxEpochSeconds is 9999-12-31T23:59:59Z.
const maxEpochSeconds = 253402300799

// Boundaries computes bucket due dates and calendar windows.
type Boundaries interface {
	StartOfTaskDay(now time.Time) time.Time
	EndOfTaskDay(now time.Time) time.Time
	TodayDueAt(now time.Time) time.Time
	WeekDueAt(now time.Time) time.Time
	NextWeekDueAt(now time.Time) time.Time
	MonthDueAt(now time.Time) time.Time
	StartOfMonth(now time.Time) time.Time
	MonthKey(t time.Time) string
	DueAt(b models.Bucket, now time.Time) time.Time
}

// Calendar implements Boundaries for a given civil month zone.
type Calendar struct {
	loc *time.Location
}

var _ Boundaries = Calendar{}

// New returns a Calendar using loc for month boundaries. A nil loc means ArchiveZone.
func New(loc *time.Location) Calendar {
	if loc == nil {
		loc = ArchiveZone
	}
	return Calendar{loc: loc}
}

// Default returns the IST calendar.
func Default() Calendar { return New(ArchiveZone) }

// Location returns the civil month zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return ArchiveZone
	}
	return c.loc
}

// Check rejects the zero instant.
func Check(t time.Time) error {
	if t.IsZero() {
		return ErrInvalidTime
	}
	return nil
}

// FromEpochSeconds converts a feed timestamp. Non-finite, non-positive or
// out-of-range values yield ErrInvalidTime.
func FromEpochSeconds(sec float64) (time.Time, error) {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec <= 0 || sec > maxEpochSeconds {
		return time.Time{}, ErrInvalidTime
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}

func utcMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfUTCDay(midnight time.Time) time.Time {
	return midnight.Add(24*time.Hour - time.Millisecond)
}

// IsLateWeek reports whether t falls on a UTC Friday or Saturday.
func IsLateWeek(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Friday || wd == time.Saturday
}

// StartOfTaskDay is UTC midnight of now's UTC calendar day.
func (Calendar) StartOfTaskDay(now time.Time) time.Time {
	return utcMidnight(now)
}

// EndOfTaskDay is the last millisecond of now's UTC calendar day.
func (Calendar) EndOfTaskDay(now time.Time) time.Time {
	return endOfUTCDay(utcMidnight(now))
}

// TodayDueAt is the end of the current task day.
func (c Calendar) TodayDueAt(now time.Time) time.Time {
	due := c.EndOfTaskDay(now)
	if !due.After(now) {
		due = due.Add(24 * time.Hour)
	}
	return due
}

// upcomingSunday is the end of the first UTC Sunday strictly after now.
// On a Sunday that is the end of the same day.
func upcomingSunday(now time.Time) time.Time {
	mid := utcMidnight(now)
	days := (7 - int(mid.Weekday())) % 7
	due := endOfUTCDay(mid.AddDate(0, 0, days))
	if !due.After(now) {
		due = due.AddDate(0, 0, 7)
	}
	return due
}

// WeekDueAt is the end of the upcoming Sunday, or of the Sunday after it
// when now is a Friday or Saturday.
func (Calendar) WeekDueAt(now time.Time) time.Time {
	due := upcomingSunday(now)
	if IsLateWeek(now) {
		due = due.AddDate(0, 0, 7)
	}
	return due
}

// NextWeekDueAt is the Sunday boundary one week after the upcoming Sunday.
func (Calendar) NextWeekDueAt(now time.Time) time.Time {
	return upcomingSunday(now).AddDate(0, 0, 7)
}

// StartOfMonth is the first instant of now's civil month.
func (c Calendar) StartOfMonth(now time.Time) time.Time {
	l := now.In(c.Location())
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, c.Location()).UTC()
}

// MonthDueAt is the last millisecond of now's civil month.
func (c Calendar) MonthDueAt(now time.Time) time.Time {
	l := now.In(c.Location())
	next := time.Date(l.Year(), l.Month()+1, 1, 0, 0, 0, 0, c.Location())
	due := next.Add(-time.Millisecond).UTC()
	if !due.After(now) {
		return c.MonthDueAt(next)
	}
	return due
}

// MonthKey formats t's civil month, e.g. "2025-03".
func (c Calendar) MonthKey(t time.Time) string {
	return t.In(c.Location()).Format(MonthKeyLayout)
}

// DueAt applies the default due rule for bucket b.
func (c Calendar) DueAt(b models.Bucket, now time.Time) time.Time {
	switch b {
	case models.BucketWeek:
		return c.WeekDueAt(now)
	case models.BucketMonth:
		return c.MonthDueAt(now)
	default:
		return c.TodayDueAt(now)
	}
}
