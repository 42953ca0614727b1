package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockTime(t *testing.T) {
	assert.Equal(t, "08:05", ClockTime(8*60+5).String())
	assert.Equal(t, "00:00", ClockTime(0).String())
	assert.Equal(t, ClockTime(9*60+30), ClockTime(9*60).Add(30))
}

func TestClockWindowContains(t *testing.T) {
	w := ClockWindow{Start: 7 * 60, End: 9 * 60}

	assert.True(t, w.Contains(8*60))
	assert.True(t, w.Contains(7*60))
	assert.True(t, w.Contains(9*60))
	assert.False(t, w.Contains(7*60-1))
	assert.False(t, w.Contains(9*60+1))
}

func TestTripTemplateValidate(t *testing.T) {
	valid := func() TripTemplate {
		return TripTemplate{
			ID:          "tpl-1",
			FromPlaceID: "a",
			ToPlaceID:   "b",
			DistanceKm:  10,
			KmTolerance: 1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*TripTemplate)
		reason string
	}{
		{
			name:   "Valid template",
			mutate: func(*TripTemplate) {},
		},
		{
			name:   "Negative km tolerance",
			mutate: func(t *TripTemplate) { t.KmTolerance = -1 },
			reason: "negative km tolerance",
		},
		{
			name: "Inverted time filter",
			mutate: func(t *TripTemplate) {
				t.TimeFilter = &ClockWindow{Start: 9 * 60, End: 7 * 60}
			},
			reason: "time filter start must be before end",
		},
		{
			name: "Return trip without timing",
			mutate: func(t *TripTemplate) {
				t.Return = &ReturnTripConfig{}
			},
			reason: "return trip enabled without timing",
		},
		{
			name: "Negative return break",
			mutate: func(t *TripTemplate) {
				t.Return = &ReturnTripConfig{Timing: ReturnAfterBreak{BreakMinutes: -10}}
			},
			reason: "negative return break duration",
		},
		{
			name: "Non-contiguous waypoint order",
			mutate: func(t *TripTemplate) {
				t.Waypoints = []TemplateWaypoint{
					{PlaceID: "x", Order: 0},
					{PlaceID: "y", Order: 2},
				}
			},
			reason: "waypoint order not contiguous at index 1",
		},
		{
			name: "Unknown recurrence type",
			mutate: func(t *TripTemplate) {
				t.Recurrence = &RecurrencePattern{Type: "yearly"}
			},
			reason: `unknown recurrence type "yearly"`,
		},
		{
			name: "Recurrence end before reference",
			mutate: func(t *TripTemplate) {
				end := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
				t.Recurrence = &RecurrencePattern{
					Type:      RecurDaily,
					Reference: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
					EndDate:   &end,
				}
			},
			reason: "recurrence end date before reference date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := valid()
			tt.mutate(&tmpl)

			err := tmpl.Validate()
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}

			var ce *ConfigurationError
			assert.ErrorAs(t, err, &ce)
			assert.Equal(t, "tpl-1", ce.TemplateID)
			assert.Equal(t, tt.reason, ce.Reason)
		})
	}
}

func TestOdometerObservationValidate(t *testing.T) {
	now := time.Date(2025, time.January, 7, 8, 0, 0, 0, time.UTC)

	t.Run("Valid observation", func(t *testing.T) {
		obs := OdometerObservation{VehicleID: "veh-1", DistanceKm: 12.5, ObservedAt: now}
		assert.NoError(t, obs.Validate())
	})

	t.Run("Zero distance is allowed", func(t *testing.T) {
		obs := OdometerObservation{VehicleID: "veh-1", ObservedAt: now}
		assert.NoError(t, obs.Validate())
	})

	t.Run("Negative distance", func(t *testing.T) {
		obs := OdometerObservation{VehicleID: "veh-1", DistanceKm: -3, ObservedAt: now}

		var invalid *InvalidObservationError
		assert.ErrorAs(t, obs.Validate(), &invalid)
	})

	t.Run("Inverted window", func(t *testing.T) {
		end := now.Add(-time.Minute)
		obs := OdometerObservation{VehicleID: "veh-1", DistanceKm: 3, ObservedAt: now, EndsAt: &end}

		assert.Error(t, obs.Validate())
	})
}
