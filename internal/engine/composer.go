package engine

import (
	"math"

	"github.com/fleetlog/fleetlog_core/internal/models"
)

// ComposeOptions controls how a template is expanded into legs
type ComposeOptions struct {
	// OutboundDepart is the planned departure of the first leg. When
	// nil, the template's time filter start is used if one exists.
	OutboundDepart *models.ClockTime

	// OutboundArrive is the arrival time of the final outbound leg,
	// used to anchor after-break return timing. When nil, the return
	// break counts from the outbound departure instead.
	OutboundArrive *models.ClockTime

	// IncludeOptionalWaypoints adds non-fixed waypoints to the path.
	// Advisory stops are excluded by default and never affect matching.
	IncludeOptionalWaypoints bool
}

// ComposeLegs turns a template into the ordered leg list for one
// realization: outbound through fixed waypoints, then the return leg if
// the template is a round trip.
//
// The template's expected distance is split equally across legs; the
// rounding remainder lands on the first leg so the legs always sum to
// the expected distance exactly (in hundredths of a km).
func ComposeLegs(t models.TripTemplate, opts ComposeOptions) ([]models.PlannedLeg, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	places := []string{t.FromPlaceID}
	for _, wp := range t.Waypoints {
		if wp.Fixed || opts.IncludeOptionalWaypoints {
			places = append(places, wp.PlaceID)
		}
	}
	places = append(places, t.ToPlaceID)

	withReturn := t.Return != nil && !t.OneWay
	legCount := len(places) - 1
	if withReturn {
		legCount++
	}

	shares := splitDistance(t.DistanceKm, legCount)

	depart := opts.OutboundDepart
	if depart == nil && t.TimeFilter != nil {
		start := t.TimeFilter.Start
		depart = &start
	}

	outboundTolerance := 0
	if t.Recurrence != nil {
		outboundTolerance = t.Recurrence.ToleranceMinutes
	}

	legs := make([]models.PlannedLeg, 0, legCount)
	for i := 0; i < len(places)-1; i++ {
		leg := models.PlannedLeg{
			FromPlaceID:      places[i],
			ToPlaceID:        places[i+1],
			ToleranceMinutes: outboundTolerance,
			DistanceKm:       shares[i],
		}
		if i == 0 {
			leg.Depart = depart
		}
		legs = append(legs, leg)
	}

	if withReturn {
		legs = append(legs, models.PlannedLeg{
			FromPlaceID:      t.ToPlaceID,
			ToPlaceID:        t.FromPlaceID,
			Depart:           resolveReturnDepart(t.Return.Timing, opts.OutboundArrive, depart),
			ToleranceMinutes: t.Return.ToleranceMinutes,
			DistanceKm:       shares[legCount-1],
			IsReturn:         true,
		})
	}

	return legs, nil
}

// resolveReturnDepart computes the return leg departure: a configured
// exact time, or the break duration added to the outbound arrival
// (falling back to the outbound departure when no arrival is known).
func resolveReturnDepart(timing models.ReturnTiming, arrive, depart *models.ClockTime) *models.ClockTime {
	switch tm := timing.(type) {
	case models.ReturnAtTime:
		c := tm.Clock
		return &c
	case models.ReturnAfterBreak:
		anchor := arrive
		if anchor == nil {
			anchor = depart
		}
		if anchor == nil {
			return nil
		}
		c := anchor.Add(tm.BreakMinutes)
		return &c
	}
	return nil
}

// splitDistance divides km equally into n shares rounded to hundredths,
// crediting the remainder to the first share
func splitDistance(km float64, n int) []float64 {
	if n <= 0 {
		return nil
	}

	totalCents := int(math.Round(km * 100))
	base := totalCents / n
	remainder := totalCents - base*n

	shares := make([]float64, n)
	for i := range shares {
		cents := base
		if i == 0 {
			cents += remainder
		}
		shares[i] = float64(cents) / 100
	}
	return shares
}
