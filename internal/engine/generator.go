package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fleetlog/fleetlog_core/internal/calendar"
	"github.com/fleetlog/fleetlog_core/internal/models"
	"github.com/fleetlog/fleetlog_core/internal/recurrence"
	"github.com/google/uuid"
)

// GenerateInstances expands every recurring template applying to the
// vehicle over [from, to] and emits one planned instance per surviving
// date. Independent template expansions run in parallel; instances for
// different templates never interact.
//
// The result is sorted ascending by date, then template priority, then
// template ID, so re-runs are stable for upsert-by-(template, date)
// persistence downstream. Malformed templates are reported and skipped.
func GenerateInstances(ctx context.Context, vehicleID string, from, to time.Time, templates []models.TripTemplate, holidays *calendar.HolidaySet) ([]models.PlannedTripInstance, []models.ConfigurationError, error) {
	type expansion struct {
		instances []models.PlannedTripInstance
		skipped   *models.ConfigurationError
		err       error
	}

	var active []models.TripTemplate
	for _, t := range templates {
		if t.Recurrence == nil {
			continue
		}
		if t.VehicleID != "" && t.VehicleID != vehicleID {
			continue
		}
		active = append(active, t)
	}

	results := make(chan expansion, len(active))
	var wg sync.WaitGroup

	for _, t := range active {
		wg.Add(1)
		go func(tpl models.TripTemplate) {
			defer wg.Done()
			instances, skipped, err := expandTemplate(ctx, tpl, vehicleID, from, to, holidays)
			results <- expansion{instances: instances, skipped: skipped, err: err}
		}(t)
	}

	wg.Wait()
	close(results)

	var instances []models.PlannedTripInstance
	var skipped []models.ConfigurationError

	for r := range results {
		if r.err != nil {
			return nil, nil, r.err
		}
		if r.skipped != nil {
			skipped = append(skipped, *r.skipped)
			continue
		}
		instances = append(instances, r.instances...)
	}

	priorities := make(map[string]int, len(active))
	for _, t := range active {
		priorities[t.ID] = t.Priority
	}

	sort.Slice(instances, func(i, j int) bool {
		a, b := instances[i], instances[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if priorities[a.TemplateID] != priorities[b.TemplateID] {
			return priorities[a.TemplateID] < priorities[b.TemplateID]
		}
		return a.TemplateID < b.TemplateID
	})

	return instances, skipped, nil
}

// expandTemplate runs one template through the expander, the holiday
// policy and the composer
func expandTemplate(ctx context.Context, t models.TripTemplate, vehicleID string, from, to time.Time, holidays *calendar.HolidaySet) ([]models.PlannedTripInstance, *models.ConfigurationError, error) {
	if err := t.Validate(); err != nil {
		if ce, ok := err.(*models.ConfigurationError); ok {
			return nil, ce, nil
		}
		return nil, nil, err
	}

	seq, err := recurrence.Expand(*t.Recurrence, from, to)
	if err != nil {
		return nil, &models.ConfigurationError{TemplateID: t.ID, Reason: err.Error()}, nil
	}

	legs, err := ComposeLegs(t, ComposeOptions{})
	if err != nil {
		if ce, ok := err.(*models.ConfigurationError); ok {
			return nil, ce, nil
		}
		return nil, nil, err
	}

	var instances []models.PlannedTripInstance
	var iterErr error

	seq.Each(func(date time.Time) bool {
		if ctx.Err() != nil {
			iterErr = ctx.Err()
			return false
		}

		if t.WorkdaysOnly && !calendar.IsWorkday(date) {
			return true
		}
		if holidays.Contains(date) && !t.AllowOnHolidays {
			return true
		}

		instances = append(instances, newInstance(t, vehicleID, date, legs))
		return true
	})

	if iterErr != nil {
		return nil, nil, iterErr
	}
	return instances, nil, nil
}

// PlanFromObservation classifies a single observation and, on a match,
// emits exactly one planned instance dated at the observation's date.
// On no-match or ambiguity the instance is nil and the result carries
// the disposition; a template is never fabricated.
func PlanFromObservation(obs models.OdometerObservation, templates []models.TripTemplate, holidays *calendar.HolidaySet) (*models.PlannedTripInstance, models.MatchResult, error) {
	result, err := Match(obs, templates, holidays)
	if err != nil {
		return nil, models.MatchResult{}, err
	}
	if result.Outcome != models.OutcomeMatched {
		return nil, result, nil
	}

	t := *result.Template

	depart := calendar.ClockOf(obs.ObservedAt)
	opts := ComposeOptions{OutboundDepart: &depart}
	if obs.EndsAt != nil {
		arrive := calendar.ClockOf(*obs.EndsAt)
		opts.OutboundArrive = &arrive
	}

	legs, err := ComposeLegs(t, opts)
	if err != nil {
		return nil, models.MatchResult{}, err
	}

	inst := newInstance(t, obs.VehicleID, calendar.DateOnly(obs.ObservedAt), legs)
	return &inst, result, nil
}

func newInstance(t models.TripTemplate, vehicleID string, date time.Time, legs []models.PlannedLeg) models.PlannedTripInstance {
	shared := make([]models.PlannedLeg, len(legs))
	copy(shared, legs)

	return models.PlannedTripInstance{
		ID:          uuid.NewString(),
		TemplateID:  t.ID,
		VehicleID:   vehicleID,
		Date:        date,
		Legs:        shared,
		Status:      models.StatusPlanned,
		Type:        t.DefaultType,
		Description: t.DefaultDescription,
		AllDay:      t.AllDay,
	}
}
