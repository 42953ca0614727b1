package recurrence

import (
	"testing"
	"time"

	"github.com/fleetlog/fleetlog_core/internal/models"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandRejectsUnknownType(t *testing.T) {
	_, err := Expand(models.RecurrencePattern{
		Type:      "fortnightly",
		Reference: date(2025, time.January, 1),
	}, date(2025, time.January, 1), date(2025, time.January, 31))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fortnightly")
}

func TestExpandDaily(t *testing.T) {
	seq, err := Expand(models.RecurrencePattern{
		Type:      models.RecurDaily,
		Reference: date(2025, time.January, 1),
	}, date(2025, time.January, 1), date(2025, time.January, 5))

	assert.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2025, time.January, 1),
		date(2025, time.January, 2),
		date(2025, time.January, 3),
		date(2025, time.January, 4),
		date(2025, time.January, 5),
	}, seq.Dates())
}

func TestExpandWeekly(t *testing.T) {
	t.Run("Explicit days with end date", func(t *testing.T) {
		end := date(2025, time.January, 15)
		seq, err := Expand(models.RecurrencePattern{
			Type:      models.RecurWeekly,
			Reference: date(2025, time.January, 1),
			EndDate:   &end,
			Days:      []time.Weekday{time.Monday, time.Wednesday},
		}, date(2025, time.January, 1), date(2025, time.January, 31))

		assert.NoError(t, err)
		assert.Equal(t, []time.Time{
			date(2025, time.January, 1),  // Wed
			date(2025, time.January, 6),  // Mon
			date(2025, time.January, 8),  // Wed
			date(2025, time.January, 13), // Mon
			date(2025, time.January, 15), // Wed
		}, seq.Dates())
	})

	t.Run("Empty day set falls back to reference weekday", func(t *testing.T) {
		// 2025-01-01 is a Wednesday
		seq, err := Expand(models.RecurrencePattern{
			Type:      models.RecurWeekly,
			Reference: date(2025, time.January, 1),
		}, date(2025, time.January, 1), date(2025, time.January, 20))

		assert.NoError(t, err)
		assert.Equal(t, []time.Time{
			date(2025, time.January, 1),
			date(2025, time.January, 8),
			date(2025, time.January, 15),
		}, seq.Dates())
	})
}

func TestExpandMonthly(t *testing.T) {
	t.Run("Day of month from reference", func(t *testing.T) {
		seq, err := Expand(models.RecurrencePattern{
			Type:      models.RecurMonthly,
			Reference: date(2025, time.January, 15),
		}, date(2025, time.January, 1), date(2025, time.March, 31))

		assert.NoError(t, err)
		assert.Equal(t, []time.Time{
			date(2025, time.January, 15),
			date(2025, time.February, 15),
			date(2025, time.March, 15),
		}, seq.Dates())
	})

	t.Run("Months without the reference day are skipped", func(t *testing.T) {
		seq, err := Expand(models.RecurrencePattern{
			Type:      models.RecurMonthly,
			Reference: date(2025, time.January, 31),
		}, date(2025, time.January, 1), date(2025, time.June, 30))

		assert.NoError(t, err)
		assert.Equal(t, []time.Time{
			date(2025, time.January, 31),
			date(2025, time.March, 31),
			date(2025, time.May, 31),
		}, seq.Dates())
	})
}

func TestExpandWorkdays(t *testing.T) {
	// 2025-01-04 and 2025-01-05 are a weekend
	seq, err := Expand(models.RecurrencePattern{
		Type:      models.RecurWorkdays,
		Reference: date(2025, time.January, 1),
	}, date(2025, time.January, 1), date(2025, time.January, 7))

	assert.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2025, time.January, 1),
		date(2025, time.January, 2),
		date(2025, time.January, 3),
		date(2025, time.January, 6),
		date(2025, time.January, 7),
	}, seq.Dates())
}

func TestExpandCustom(t *testing.T) {
	seq, err := Expand(models.RecurrencePattern{
		Type:      models.RecurCustom,
		Reference: date(2025, time.January, 1),
		Days:      []time.Weekday{time.Saturday, time.Sunday},
	}, date(2025, time.January, 1), date(2025, time.January, 12))

	assert.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2025, time.January, 4),
		date(2025, time.January, 5),
		date(2025, time.January, 11),
		date(2025, time.January, 12),
	}, seq.Dates())
}

func TestExpandBounds(t *testing.T) {
	t.Run("Dates before reference are excluded", func(t *testing.T) {
		seq, err := Expand(models.RecurrencePattern{
			Type:      models.RecurDaily,
			Reference: date(2025, time.January, 10),
		}, date(2025, time.January, 1), date(2025, time.January, 12))

		assert.NoError(t, err)
		assert.Equal(t, []time.Time{
			date(2025, time.January, 10),
			date(2025, time.January, 11),
			date(2025, time.January, 12),
		}, seq.Dates())
	})

	t.Run("End date clips the window", func(t *testing.T) {
		end := date(2025, time.January, 3)
		seq, err := Expand(models.RecurrencePattern{
			Type:      models.RecurDaily,
			Reference: date(2025, time.January, 1),
			EndDate:   &end,
		}, date(2025, time.January, 1), date(2025, time.January, 31))

		assert.NoError(t, err)
		assert.Len(t, seq.Dates(), 3)
	})

	t.Run("Inverted window is empty", func(t *testing.T) {
		seq, err := Expand(models.RecurrencePattern{
			Type:      models.RecurDaily,
			Reference: date(2025, time.January, 1),
		}, date(2025, time.January, 10), date(2025, time.January, 5))

		assert.NoError(t, err)
		assert.Empty(t, seq.Dates())
	})
}

func TestExpandIsRepeatable(t *testing.T) {
	seq, err := Expand(models.RecurrencePattern{
		Type:      models.RecurWeekly,
		Reference: date(2025, time.January, 1),
		Days:      []time.Weekday{time.Friday},
	}, date(2025, time.January, 1), date(2025, time.February, 28))

	assert.NoError(t, err)
	assert.Equal(t, seq.Dates(), seq.Dates())
}

func TestSequenceContains(t *testing.T) {
	seq, err := Expand(models.RecurrencePattern{
		Type:      models.RecurWeekly,
		Reference: date(2025, time.January, 1),
		Days:      []time.Weekday{time.Monday},
	}, date(2025, time.January, 1), date(2025, time.January, 31))

	assert.NoError(t, err)
	assert.True(t, seq.Contains(date(2025, time.January, 6)))
	assert.False(t, seq.Contains(date(2025, time.January, 7)))
	assert.False(t, seq.Contains(date(2025, time.February, 3)), "outside the window")
}
