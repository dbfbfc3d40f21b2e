// Package birthday holds the calendar math for the bot: resolving a
// user's local "today", deciding whether a (day, month) pair falls on it,
// and computing the next occurrence of a birthday relative to a
// reference date.
//
// All dates handed around by this package are civil dates: the year,
// month and day observed on a wall clock in some timezone, normalized to
// midnight UTC. Subtracting two of them therefore always yields a whole
// number of days, regardless of DST transitions in the zone they came
// from.
package birthday

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Resolver turns timezone names into local calendar dates. Unknown or
// empty timezone names fall back to the configured default rather than
// erroring, so a bad record can never break a sweep.
type Resolver struct {
	// Default is the zone used when a record and its guild carry no
	// timezone of their own, and the fallback for unknown names.
	Default *time.Location

	// Now returns the current instant. Tests may replace it.
	Now func() time.Time
}

// NewResolver builds a Resolver for the given default timezone name.
// An invalid default is an error; the caller is expected to treat it as
// fatal at startup.
func NewResolver(defaultTZ string) (*Resolver, error) {
	loc, err := time.LoadLocation(defaultTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid default timezone %q: %w", defaultTZ, err)
	}
	return &Resolver{Default: loc, Now: time.Now}, nil
}

// Location resolves a timezone name, falling back to the default when
// the name is empty or unknown.
func (r *Resolver) Location(name string) *time.Location {
	if name == "" {
		return r.Default
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return r.Default
	}
	return loc
}

// Today returns the current calendar date in loc as a civil date.
func (r *Resolver) Today(loc *time.Location) time.Time {
	year, month, day := r.Now().In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TodayDefault returns the current calendar date in the default zone.
// The reminder sweep uses it as its global run date.
func (r *Resolver) TodayDefault() time.Time {
	return r.Today(r.Default)
}

// ValidDate reports whether (month, day) is a real calendar date in at
// least one year. Feb 29 is accepted.
func ValidDate(month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	// 2000 is a leap year, so every legal (month, day) exists in it.
	d := time.Date(2000, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return int(d.Month()) == month && d.Day() == day
}

// Observed returns the date a (month, day) birthday is observed on in
// the given year. The only adjustment is Feb 29, which is observed on
// Feb 28 in non-leap years.
func Observed(year, month, day int) time.Time {
	if month == 2 && day == 29 && !isLeapYear(year) {
		day = 28
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// IsToday reports whether (month, day) is observed on the given civil
// date, independent of year.
func IsToday(month, day int, today time.Time) bool {
	return Observed(today.Year(), month, day).Equal(today)
}

// NextOccurrence returns the soonest observed date of (month, day) that
// is not before ref. It equals ref exactly when the birthday is today.
func NextOccurrence(month, day int, ref time.Time) time.Time {
	next := Observed(ref.Year(), month, day)
	if next.Before(ref) {
		next = Observed(ref.Year()+1, month, day)
	}
	return next
}

// DaysUntil returns the number of whole days from ref to the next
// occurrence of (month, day). Zero means today.
func DaysUntil(month, day int, ref time.Time) int {
	return int(NextOccurrence(month, day, ref).Sub(ref).Hours() / 24)
}

// FormatDate renders a (month, day) pair the way the bot speaks about
// dates, e.g. "January 2nd".
func FormatDate(month, day int) string {
	return fmt.Sprintf("%v %v", time.Month(month), humanize.Ordinal(day))
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
