package recurrence

import (
	"fmt"
	"time"

	"github.com/fleetlog/fleetlog_core/internal/calendar"
	"github.com/fleetlog/fleetlog_core/internal/models"
)

// Sequence is the lazy expansion of a recurrence pattern over a date
// window. It holds the pattern and window only, so iteration is finite,
// ascending and restartable: every Each walks from the window start.
type Sequence struct {
	pattern models.RecurrencePattern
	window  calendar.Range
}

// Expand builds the eligible-date sequence for a pattern within
// [from, to] inclusive. An unknown recurrence type is a configuration
// error, never silently defaulted.
//
// Holiday exclusion is the caller's concern; this component is pure
// calendar arithmetic.
func Expand(p models.RecurrencePattern, from, to time.Time) (*Sequence, error) {
	switch p.Type {
	case models.RecurDaily, models.RecurWeekly, models.RecurMonthly, models.RecurWorkdays, models.RecurCustom:
	default:
		return nil, fmt.Errorf("unknown recurrence type %q", p.Type)
	}

	return &Sequence{
		pattern: p,
		window:  calendar.Range{From: calendar.DateOnly(from), To: calendar.DateOnly(to)},
	}, nil
}

// Each calls fn for every eligible date in ascending order, stopping
// early if fn returns false
func (s *Sequence) Each(fn func(date time.Time) bool) {
	end := s.effectiveEnd()

	s.window.Each(func(d time.Time) bool {
		if end != nil && d.After(*end) {
			return false
		}
		if !s.eligible(d) {
			return true
		}
		return fn(d)
	})
}

// Dates materializes the sequence into a slice
func (s *Sequence) Dates() []time.Time {
	var out []time.Time
	s.Each(func(d time.Time) bool {
		out = append(out, d)
		return true
	})
	return out
}

// Contains reports whether a single date is a member of the expansion
func (s *Sequence) Contains(date time.Time) bool {
	d := calendar.DateOnly(date)
	if d.Before(s.window.From) || d.After(s.window.To) {
		return false
	}
	if end := s.effectiveEnd(); end != nil && d.After(*end) {
		return false
	}
	return s.eligible(d)
}

// effectiveEnd returns the pattern end date clipped to the window,
// or nil for open-ended patterns
func (s *Sequence) effectiveEnd() *time.Time {
	if s.pattern.EndDate == nil {
		return nil
	}
	end := calendar.DateOnly(*s.pattern.EndDate)
	return &end
}

func (s *Sequence) eligible(d time.Time) bool {
	ref := calendar.DateOnly(s.pattern.Reference)

	// Nothing fires before the pattern's reference date
	if !ref.IsZero() && d.Before(ref) {
		return false
	}

	switch s.pattern.Type {
	case models.RecurDaily:
		return true

	case models.RecurWeekly, models.RecurCustom:
		days := s.pattern.Days
		if len(days) == 0 {
			// An unset day set falls back to the reference date's weekday
			days = []time.Weekday{ref.Weekday()}
		}
		for _, wd := range days {
			if d.Weekday() == wd {
				return true
			}
		}
		return false

	case models.RecurMonthly:
		// Months lacking the reference day-of-month are skipped, not
		// clamped: no date in such a month carries that day number.
		return d.Day() == ref.Day()

	case models.RecurWorkdays:
		return calendar.IsWorkday(d)
	}

	return false
}
