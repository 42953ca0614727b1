package models

import (
	"fmt"
	"time"
)

// TripType classifies a trip for reporting purposes
type TripType string

const (
	TripBusiness TripType = "business"
	TripPrivate  TripType = "private"
)

// PlannedStatus represents the lifecycle state of a planned trip instance
type PlannedStatus string

const (
	StatusPlanned   PlannedStatus = "planned"
	StatusCompleted PlannedStatus = "completed"
	StatusSkipped   PlannedStatus = "skipped"
)

// RecurrenceType represents how a recurring template repeats
type RecurrenceType string

const (
	RecurDaily    RecurrenceType = "daily"
	RecurWeekly   RecurrenceType = "weekly"
	RecurMonthly  RecurrenceType = "monthly"
	RecurWorkdays RecurrenceType = "workdays"
	RecurCustom   RecurrenceType = "custom"
)

// HolidayType represents the scope of a holiday entry
type HolidayType string

const (
	HolidayPublic   HolidayType = "public"
	HolidayCompany  HolidayType = "company"
	HolidayRegional HolidayType = "regional"
)

// ClockTime is a time of day expressed as minutes since midnight
type ClockTime int

// String formats the clock time as HH:MM
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns the clock time shifted by the given number of minutes
func (c ClockTime) Add(minutes int) ClockTime {
	return ClockTime(int(c) + minutes)
}

// ClockWindow is a closed [Start, End] time-of-day window.
// Windows never cross midnight; Start < End is enforced at validation.
type ClockWindow struct {
	Start ClockTime
	End   ClockTime
}

// Contains reports whether t falls inside the window, bounds included
func (w ClockWindow) Contains(t ClockTime) bool {
	return t >= w.Start && t <= w.End
}

// ReturnTiming determines when the return leg of a round trip departs.
// Exactly one concrete timing exists per return config, so the
// "exact time and break duration both set" state cannot be represented.
type ReturnTiming interface {
	returnTiming()
}

// ReturnAtTime departs the return leg at a fixed clock time
type ReturnAtTime struct {
	Clock ClockTime
}

// ReturnAfterBreak departs the return leg a fixed number of minutes
// after the outbound arrival
type ReturnAfterBreak struct {
	BreakMinutes int
}

func (ReturnAtTime) returnTiming()     {}
func (ReturnAfterBreak) returnTiming() {}

// ReturnTripConfig describes the return leg of a non-one-way template.
// A nil config on the template means no return leg is planned.
type ReturnTripConfig struct {
	Timing           ReturnTiming
	ToleranceMinutes int // acceptance window half-width for reconciliation
}

// RecurrencePattern describes which calendar dates a recurring template
// is eligible on
type RecurrencePattern struct {
	Type RecurrenceType

	// Reference anchors the pattern: first eligible date, day-of-month
	// source for monthly, and default weekday for weekly
	Reference time.Time

	// EndDate, when set, is the last eligible date (inclusive)
	EndDate *time.Time

	// Days is the explicit weekday set for weekly/custom patterns
	Days []time.Weekday

	// ToleranceMinutes is used when reconciling an actual trip against
	// the planned instance
	ToleranceMinutes int
}

// TemplateWaypoint is an ordered intermediate stop on a template route
type TemplateWaypoint struct {
	PlaceID string
	Order   int  // 0-based, contiguous within a template
	Fixed   bool // non-fixed waypoints are advisory only
}

// TripTemplate is a reusable route definition. Read-only input to the
// engine; the engine never mutates templates.
type TripTemplate struct {
	ID   string
	Name string

	// VehicleID restricts the template to one vehicle; empty means all
	VehicleID string

	FromPlaceID string
	ToPlaceID   string

	DistanceKm  float64
	KmTolerance float64

	DefaultType        TripType
	DefaultDescription string

	// Priority ranks competing matches; lower value wins
	Priority int

	// AutoMatch enables the template for automatic odometer matching
	AutoMatch bool

	// TimeFilter, when set, restricts matching to observations inside
	// the window
	TimeFilter *ClockWindow

	WorkdaysOnly    bool
	AllowOnHolidays bool
	OneWay          bool
	AllDay          bool

	Return     *ReturnTripConfig
	Waypoints  []TemplateWaypoint
	Recurrence *RecurrencePattern
}

// Validate checks the template configuration invariants.
// A failure disqualifies this template only; evaluation of other
// templates continues.
func (t *TripTemplate) Validate() error {
	if t.KmTolerance < 0 {
		return &ConfigurationError{TemplateID: t.ID, Reason: "negative km tolerance"}
	}
	if t.TimeFilter != nil && t.TimeFilter.Start >= t.TimeFilter.End {
		return &ConfigurationError{TemplateID: t.ID, Reason: "time filter start must be before end"}
	}
	if t.Return != nil {
		if t.Return.Timing == nil {
			return &ConfigurationError{TemplateID: t.ID, Reason: "return trip enabled without timing"}
		}
		if t.Return.ToleranceMinutes < 0 {
			return &ConfigurationError{TemplateID: t.ID, Reason: "negative return time tolerance"}
		}
		if ab, ok := t.Return.Timing.(ReturnAfterBreak); ok && ab.BreakMinutes < 0 {
			return &ConfigurationError{TemplateID: t.ID, Reason: "negative return break duration"}
		}
	}
	for i, wp := range t.Waypoints {
		if wp.Order != i {
			return &ConfigurationError{TemplateID: t.ID, Reason: fmt.Sprintf("waypoint order not contiguous at index %d", i)}
		}
	}
	if r := t.Recurrence; r != nil {
		switch r.Type {
		case RecurDaily, RecurWeekly, RecurMonthly, RecurWorkdays, RecurCustom:
		default:
			return &ConfigurationError{TemplateID: t.ID, Reason: fmt.Sprintf("unknown recurrence type %q", r.Type)}
		}
		if r.ToleranceMinutes < 0 {
			return &ConfigurationError{TemplateID: t.ID, Reason: "negative recurrence time tolerance"}
		}
		if r.EndDate != nil && r.EndDate.Before(r.Reference) {
			return &ConfigurationError{TemplateID: t.ID, Reason: "recurrence end date before reference date"}
		}
	}
	return nil
}

// OdometerObservation is a candidate trip implied by two odometer
// readings. Subtraction and reading validation happen upstream.
type OdometerObservation struct {
	VehicleID  string
	DistanceKm float64
	ObservedAt time.Time
	EndsAt     *time.Time
}

// Validate rejects observations that cannot be matched at all
func (o *OdometerObservation) Validate() error {
	if o.DistanceKm < 0 {
		return &InvalidObservationError{Reason: fmt.Sprintf("negative distance delta %.2f km", o.DistanceKm)}
	}
	if o.EndsAt != nil && o.EndsAt.Before(o.ObservedAt) {
		return &InvalidObservationError{Reason: "observation window end precedes start"}
	}
	return nil
}

// PlannedLeg is one directional segment of a composed route
type PlannedLeg struct {
	FromPlaceID string
	ToPlaceID   string

	// Depart is the planned departure clock time, when one is resolvable
	Depart *ClockTime

	// ToleranceMinutes is the acceptance window half-width for
	// reconciling an actual trip against this leg
	ToleranceMinutes int

	DistanceKm float64

	// IsReturn marks the appended to-place -> from-place leg
	IsReturn bool
}

// PlannedTripInstance is a concrete, dated realization of a template.
// Instances are created by the generator; status transitions are driven
// by downstream reconciliation.
type PlannedTripInstance struct {
	ID         string
	TemplateID string
	VehicleID  string
	Date       time.Time
	Legs       []PlannedLeg

	Status      PlannedStatus
	Type        TripType
	Description string
	AllDay      bool

	// ActualTripID links the realized trip record once reconciled
	ActualTripID string
}

// Holiday is a single holiday-calendar entry
type Holiday struct {
	ID      string
	Date    time.Time
	Name    string
	Type    HolidayType
	Country string
	Region  string

	// Recurring holidays repeat every year on the same month and day
	Recurring bool
}

// MatchOutcome is the disposition of one observation against the catalog
type MatchOutcome string

const (
	OutcomeMatched   MatchOutcome = "matched"
	OutcomeNoMatch   MatchOutcome = "no_match"
	OutcomeAmbiguous MatchOutcome = "ambiguous"
)

// MatchResult is the outcome of matching one observation.
// Ambiguous results carry the tied candidate set so the caller can ask
// a human to disambiguate; the engine never picks arbitrarily.
type MatchResult struct {
	Outcome    MatchOutcome
	Template   *TripTemplate
	Candidates []TripTemplate

	// Skipped lists templates excluded from this evaluation because
	// their configuration failed validation
	Skipped []ConfigurationError
}
