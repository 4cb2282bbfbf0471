// Package calendar produces the bookable dates of the rolling horizon.  Only
// Monday to Friday carry slot activity; weekends are never bookable regardless
// of any other state.  Everything here is pure: no storage, no side effects.
package calendar

import (
	"fmt"
	"time"

	"github.com/iliyamo/dock-slot-reservation/internal/clock"
)

// DateLayout is the wire and storage format of a business date.
const DateLayout = "2006-01-02"

// DefaultHorizonDays mirrors the two week window offered to clients.
const DefaultHorizonDays = 14

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether d falls on Monday through Friday.
func IsBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// Horizon returns the business days in [start, start+days) in ascending order.
// A non-positive days yields an empty slice.
func Horizon(start time.Time, days int) []time.Time {
	if days <= 0 {
		return []time.Time{}
	}
	start = Day(start)
	out := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		if !IsBusinessDay(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Policy decides whether a date may carry slot activity.  The weekday rule
// always applies.  When HorizonDays is positive the date must also fall in
// [today, today+HorizonDays) according to Clock.
type Policy struct {
	Clock       clock.Clock
	HorizonDays int
}

// WeekdaysOnly is the policy that applies the weekday rule alone.
func WeekdaysOnly() Policy { return Policy{} }

// Allows reports whether d is bookable under the policy.
func (p Policy) Allows(d time.Time) bool {
	d = Day(d)
	if !IsBusinessDay(d) {
		return false
	}
	if p.HorizonDays <= 0 || p.Clock == nil {
		return true
	}
	today := Day(p.Clock.Now())
	return !d.Before(today) && d.Before(today.AddDate(0, 0, p.HorizonDays))
}

// Dates returns the bookable dates of the policy's window starting at today.
// Without a horizon it falls back to DefaultHorizonDays.
func (p Policy) Dates() []time.Time {
	days := p.HorizonDays
	if days <= 0 {
		days = DefaultHorizonDays
	}
	now := time.Now().UTC()
	if p.Clock != nil {
		now = p.Clock.Now()
	}
	return Horizon(now, days)
}
