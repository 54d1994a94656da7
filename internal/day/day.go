// Package day converts instants into logical study days.
//
// A logical day starts at a configurable offset (in minutes) after local
// midnight, so a learner who studies past midnight still counts the session
// towards the previous day.
package day

import (
	"math"
	"time"
)

// MinutesPerDay bounds the valid day start offsets: [0, MinutesPerDay).
const MinutesPerDay = 24 * 60

// StartOfDay returns the start of the logical day containing t: the wall
// clock time offsetMinutes past midnight on t's date, or on the previous
// date when that is still ahead of t. Dates are taken in t's location, so
// the boundary keeps its wall clock time across DST transitions.
func StartOfDay(offsetMinutes int, t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	boundary := time.Date(y, m, d, 0, offsetMinutes, 0, 0, loc)
	if boundary.After(t) {
		boundary = time.Date(y, m, d-1, 0, offsetMinutes, 0, 0, loc)
	}
	return boundary
}

// DaysBetween returns the number of logical days from a to b.
// It returns 0 when either instant is the zero time.
func DaysBetween(offsetMinutes int, a, b time.Time) int {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	from := StartOfDay(offsetMinutes, a)
	to := StartOfDay(offsetMinutes, b.In(a.Location()))
	// Rounding absorbs 23h/25h days around DST transitions.
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// IsSameDay reports whether a and b fall on the same logical day.
func IsSameDay(offsetMinutes int, a, b time.Time) bool {
	return DaysBetween(offsetMinutes, a, b) == 0
}

// Millis returns t as unix milliseconds, the unit every stored timestamp uses.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts stored unix milliseconds into an instant in loc.
// Zero maps to the zero time.
func FromMillis(ms int64, loc *time.Location) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc)
}
