package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fleetlog/fleetlog_core/internal/models"
)

// DateOnly truncates a timestamp to its calendar date at UTC midnight.
// All engine date arithmetic happens on normalized dates.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClockOf extracts the time-of-day of a timestamp as minutes since midnight
func ClockOf(t time.Time) models.ClockTime {
	return models.ClockTime(t.Hour()*60 + t.Minute())
}

// ParseClock parses "HH:MM" into minutes since midnight
func ParseClock(s string) (models.ClockTime, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}

	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time out of range: %q", s)
	}

	return models.ClockTime(h*60 + m), nil
}

// IsWorkday reports whether the date falls Monday through Friday.
// Holiday awareness is a separate concern; see HolidaySet.
func IsWorkday(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// HolidaySet answers holiday membership for one country/region scope.
// Built once from a caller-supplied holiday list; no lookups leave memory.
type HolidaySet struct {
	exact     map[string]bool // "2006-01-02"
	recurring map[string]bool // "01-02", repeats every year
}

// NewHolidaySet indexes the holidays applying to the given country and
// region. Regional holidays outside the requested region are excluded;
// an empty region excludes all regional entries.
func NewHolidaySet(holidays []models.Holiday, country, region string) *HolidaySet {
	set := &HolidaySet{
		exact:     make(map[string]bool),
		recurring: make(map[string]bool),
	}

	for _, h := range holidays {
		if h.Country != "" && country != "" && !strings.EqualFold(h.Country, country) {
			continue
		}
		if h.Type == models.HolidayRegional && !strings.EqualFold(h.Region, region) {
			continue
		}

		if h.Recurring {
			set.recurring[h.Date.Format("01-02")] = true
		} else {
			set.exact[DateOnly(h.Date).Format("2006-01-02")] = true
		}
	}

	return set
}

// Contains reports whether the date is a holiday in this set
func (s *HolidaySet) Contains(date time.Time) bool {
	if s == nil {
		return false
	}
	d := DateOnly(date)
	return s.exact[d.Format("2006-01-02")] || s.recurring[d.Format("01-02")]
}

// Len returns the number of indexed holiday entries
func (s *HolidaySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.exact) + len(s.recurring)
}

// Range is an inclusive, ascending calendar date range.
// Iteration is lazy and restartable: every call to Each walks the range
// from the start. An inverted range is empty, not an error.
type Range struct {
	From time.Time
	To   time.Time
}

// Each calls fn for every date in the range, in ascending order,
// stopping early if fn returns false
func (r Range) Each(fn func(date time.Time) bool) {
	for d := DateOnly(r.From); !d.After(DateOnly(r.To)); d = d.AddDate(0, 0, 1) {
		if !fn(d) {
			return
		}
	}
}

// Dates materializes the range into a slice
func (r Range) Dates() []time.Time {
	var out []time.Time
	r.Each(func(d time.Time) bool {
		out = append(out, d)
		return true
	})
	return out
}

// Days returns the number of dates in the range
func (r Range) Days() int {
	n := 0
	r.Each(func(time.Time) bool {
		n++
		return true
	})
	return n
}
