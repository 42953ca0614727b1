package calendar

import (
	"testing"
	"time"

	"github.com/fleetlog/fleetlog_core/internal/models"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.ClockTime
		hasError bool
	}{
		{
			name:     "Valid time",
			input:    "08:30",
			expected: 8*60 + 30,
		},
		{
			name:     "Midnight",
			input:    "00:00",
			expected: 0,
		},
		{
			name:     "End of day",
			input:    "23:59",
			expected: 23*60 + 59,
		},
		{
			name:     "Missing minutes",
			input:    "08",
			hasError: true,
		},
		{
			name:     "Hour out of range",
			input:    "24:00",
			hasError: true,
		},
		{
			name:     "Not a number",
			input:    "ab:cd",
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseClock(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestIsWorkday(t *testing.T) {
	tests := []struct {
		name     string
		date     time.Time
		expected bool
	}{
		{"Monday", date(2025, time.January, 6), true},
		{"Wednesday", date(2025, time.January, 8), true},
		{"Friday", date(2025, time.January, 10), true},
		{"Saturday", date(2025, time.January, 11), false},
		{"Sunday", date(2025, time.January, 12), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsWorkday(tt.date))
		})
	}
}

func TestHolidaySet(t *testing.T) {
	holidays := []models.Holiday{
		{Date: date(2025, time.January, 1), Name: "New Year", Type: models.HolidayPublic, Country: "SK", Recurring: true},
		{Date: date(2025, time.April, 18), Name: "Good Friday", Type: models.HolidayPublic, Country: "SK"},
		{Date: date(2025, time.September, 15), Name: "Regional Day", Type: models.HolidayRegional, Country: "SK", Region: "BA"},
		{Date: date(2025, time.July, 4), Name: "Independence Day", Type: models.HolidayPublic, Country: "US"},
	}

	t.Run("Exact date holiday", func(t *testing.T) {
		set := NewHolidaySet(holidays, "SK", "")
		assert.True(t, set.Contains(date(2025, time.April, 18)))
		assert.False(t, set.Contains(date(2025, time.April, 19)))
	})

	t.Run("Non-recurring holiday does not repeat next year", func(t *testing.T) {
		set := NewHolidaySet(holidays, "SK", "")
		assert.False(t, set.Contains(date(2026, time.April, 18)))
	})

	t.Run("Recurring holiday repeats every year", func(t *testing.T) {
		set := NewHolidaySet(holidays, "SK", "")
		assert.True(t, set.Contains(date(2025, time.January, 1)))
		assert.True(t, set.Contains(date(2030, time.January, 1)))
	})

	t.Run("Other country excluded", func(t *testing.T) {
		set := NewHolidaySet(holidays, "SK", "")
		assert.False(t, set.Contains(date(2025, time.July, 4)))
	})

	t.Run("Regional holiday only in matching region", func(t *testing.T) {
		withRegion := NewHolidaySet(holidays, "SK", "BA")
		assert.True(t, withRegion.Contains(date(2025, time.September, 15)))

		withoutRegion := NewHolidaySet(holidays, "SK", "")
		assert.False(t, withoutRegion.Contains(date(2025, time.September, 15)))
	})

	t.Run("Nil set contains nothing", func(t *testing.T) {
		var set *HolidaySet
		assert.False(t, set.Contains(date(2025, time.January, 1)))
		assert.Equal(t, 0, set.Len())
	})
}

func TestRange(t *testing.T) {
	t.Run("Inclusive ascending iteration", func(t *testing.T) {
		r := Range{From: date(2025, time.January, 1), To: date(2025, time.January, 3)}
		dates := r.Dates()

		assert.Equal(t, []time.Time{
			date(2025, time.January, 1),
			date(2025, time.January, 2),
			date(2025, time.January, 3),
		}, dates)
	})

	t.Run("Single day range", func(t *testing.T) {
		r := Range{From: date(2025, time.January, 1), To: date(2025, time.January, 1)}
		assert.Equal(t, 1, r.Days())
	})

	t.Run("Inverted range is empty", func(t *testing.T) {
		r := Range{From: date(2025, time.January, 3), To: date(2025, time.January, 1)}
		assert.Empty(t, r.Dates())
	})

	t.Run("Restartable", func(t *testing.T) {
		r := Range{From: date(2025, time.January, 1), To: date(2025, time.January, 5)}
		assert.Equal(t, r.Dates(), r.Dates())
	})

	t.Run("Early stop", func(t *testing.T) {
		r := Range{From: date(2025, time.January, 1), To: date(2025, time.January, 31)}

		visited := 0
		r.Each(func(time.Time) bool {
			visited++
			return visited < 3
		})

		assert.Equal(t, 3, visited)
	})

	t.Run("Timestamps are normalized to dates", func(t *testing.T) {
		r := Range{
			From: time.Date(2025, time.January, 1, 15, 30, 0, 0, time.UTC),
			To:   time.Date(2025, time.January, 2, 4, 0, 0, 0, time.UTC),
		}
		assert.Equal(t, 2, r.Days())
	})
}

func TestClockOf(t *testing.T) {
	ts := time.Date(2025, time.January, 1, 9, 15, 42, 0, time.UTC)
	assert.Equal(t, models.ClockTime(9*60+15), ClockOf(ts))
}
