package engine

import (
	"math"
	"sort"

	"github.com/fleetlog/fleetlog_core/internal/calendar"
	"github.com/fleetlog/fleetlog_core/internal/models"
	"github.com/fleetlog/fleetlog_core/internal/recurrence"
)

// Match evaluates one odometer observation against the template catalog
// and returns the single best-matching template, an explicit no-match,
// or an ambiguous result carrying the tied candidates.
//
// Pure function of its inputs; the returned error is non-nil only for
// observations rejected before matching (negative delta, inverted window).
func Match(obs models.OdometerObservation, templates []models.TripTemplate, holidays *calendar.HolidaySet) (models.MatchResult, error) {
	if err := obs.Validate(); err != nil {
		return models.MatchResult{}, err
	}

	var skipped []models.ConfigurationError
	var candidates []models.TripTemplate

	for _, t := range templates {
		if err := t.Validate(); err != nil {
			if ce, ok := err.(*models.ConfigurationError); ok {
				skipped = append(skipped, *ce)
			}
			continue
		}
		if passesHardGates(t, obs, holidays) {
			candidates = append(candidates, t)
		}
	}

	if len(candidates) == 0 {
		return models.MatchResult{Outcome: models.OutcomeNoMatch, Skipped: skipped}, nil
	}

	// Rank: lowest priority value wins, ties broken by smallest
	// |observed - expected|. A residual tie is surfaced, never resolved
	// by an arbitrary pick.
	best := candidates[:0:0]
	bestPriority := candidates[0].Priority
	for _, c := range candidates {
		if c.Priority < bestPriority {
			bestPriority = c.Priority
		}
	}
	for _, c := range candidates {
		if c.Priority == bestPriority {
			best = append(best, c)
		}
	}

	if len(best) > 1 {
		bestDelta := math.Inf(1)
		for _, c := range best {
			if d := math.Abs(obs.DistanceKm - c.DistanceKm); d < bestDelta {
				bestDelta = d
			}
		}
		closest := best[:0:0]
		for _, c := range best {
			if math.Abs(obs.DistanceKm-c.DistanceKm) == bestDelta {
				closest = append(closest, c)
			}
		}
		best = closest
	}

	if len(best) == 1 {
		winner := best[0]
		return models.MatchResult{
			Outcome:  models.OutcomeMatched,
			Template: &winner,
			Skipped:  skipped,
		}, nil
	}

	// Order the tied set by template ID so callers see a stable list
	sort.Slice(best, func(i, j int) bool { return best[i].ID < best[j].ID })

	return models.MatchResult{
		Outcome:    models.OutcomeAmbiguous,
		Candidates: best,
		Skipped:    skipped,
	}, nil
}

// passesHardGates applies the all-or-nothing filters: vehicle
// restriction, closed-interval distance tolerance, time filter, workday
// rule, holiday policy and recurrence membership.
func passesHardGates(t models.TripTemplate, obs models.OdometerObservation, holidays *calendar.HolidaySet) bool {
	if !t.AutoMatch {
		return false
	}
	if t.VehicleID != "" && t.VehicleID != obs.VehicleID {
		return false
	}

	// Closed interval on both bounds; tolerance 0 demands an exact match
	if obs.DistanceKm < t.DistanceKm-t.KmTolerance || obs.DistanceKm > t.DistanceKm+t.KmTolerance {
		return false
	}

	if t.TimeFilter != nil && !t.TimeFilter.Contains(calendar.ClockOf(obs.ObservedAt)) {
		return false
	}

	date := calendar.DateOnly(obs.ObservedAt)

	// Workday and holiday checks are independent gates: a workdays-only
	// template still needs AllowOnHolidays to fire on a weekday holiday.
	if t.WorkdaysOnly && !calendar.IsWorkday(date) {
		return false
	}
	if holidays.Contains(date) && !t.AllowOnHolidays {
		return false
	}

	if t.Recurrence != nil {
		seq, err := recurrence.Expand(*t.Recurrence, date, date)
		if err != nil {
			// Unknown types are caught by Validate before the gates run
			return false
		}
		if !seq.Contains(date) {
			return false
		}
	}

	return true
}
