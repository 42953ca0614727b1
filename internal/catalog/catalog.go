package catalog

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fleetlog/fleetlog_core/internal/calendar"
	"github.com/fleetlog/fleetlog_core/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog holds the template and holiday catalogs in memory so engine
// calls never touch the database per request
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]models.TripTemplate
	order     []string // template IDs in load order
	holidays  []models.Holiday
	loaded    bool
	loadedAt  time.Time
}

var (
	globalCatalog     *Catalog
	globalCatalogOnce sync.Once
)

// Get returns the singleton in-memory catalog
func Get() *Catalog {
	globalCatalogOnce.Do(func() {
		globalCatalog = &Catalog{
			templates: make(map[string]models.TripTemplate),
		}
	})
	return globalCatalog
}

// LoadFromDB replaces the catalog contents from PostgreSQL.
// Safe to call again at runtime for a reload.
func (c *Catalog) LoadFromDB(ctx context.Context, db *pgxpool.Pool) error {
	startTime := time.Now()
	log.Println("Loading template catalog into memory...")

	templates, order, err := loadTemplates(ctx, db)
	if err != nil {
		return err
	}

	if err := loadWaypoints(ctx, db, templates); err != nil {
		return err
	}

	holidays, err := loadHolidays(ctx, db)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.templates = templates
	c.order = order
	c.holidays = holidays
	c.loaded = true
	c.loadedAt = time.Now()
	c.mu.Unlock()

	log.Printf("Catalog loaded: %d templates, %d holidays in %s",
		len(templates), len(holidays), time.Since(startTime))

	return nil
}

func loadTemplates(ctx context.Context, db *pgxpool.Pool) (map[string]models.TripTemplate, []string, error) {
	rows, err := db.Query(ctx, `
		SELECT id, name, COALESCE(vehicle_id, ''), from_place_id, to_place_id,
		       distance_km, km_tolerance, default_type, COALESCE(default_description, ''),
		       priority, auto_match,
		       time_filter_start, time_filter_end,
		       workdays_only, allow_on_holidays, one_way, all_day,
		       return_enabled, return_exact_time, return_after_break_minutes,
		       COALESCE(return_time_tolerance, 0),
		       recurrence_type, recurrence_reference, recurrence_end_date,
		       COALESCE(recurrence_tolerance, 0), recurrence_days
		FROM trip_template
		ORDER BY priority, id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load templates: %w", err)
	}
	defer rows.Close()

	templates := make(map[string]models.TripTemplate)
	var order []string

	for rows.Next() {
		var t models.TripTemplate
		var defaultType string
		var tfStart, tfEnd *int
		var returnEnabled bool
		var returnExact, returnBreak *int
		var returnTolerance int
		var recurType *string
		var recurRef, recurEnd *time.Time
		var recurTolerance int
		var recurDays []int32

		if err := rows.Scan(&t.ID, &t.Name, &t.VehicleID, &t.FromPlaceID, &t.ToPlaceID,
			&t.DistanceKm, &t.KmTolerance, &defaultType, &t.DefaultDescription,
			&t.Priority, &t.AutoMatch,
			&tfStart, &tfEnd,
			&t.WorkdaysOnly, &t.AllowOnHolidays, &t.OneWay, &t.AllDay,
			&returnEnabled, &returnExact, &returnBreak, &returnTolerance,
			&recurType, &recurRef, &recurEnd, &recurTolerance, &recurDays,
		); err != nil {
			log.Printf("Warning: failed to scan template: %v", err)
			continue
		}

		t.DefaultType = models.TripType(defaultType)

		if tfStart != nil && tfEnd != nil {
			t.TimeFilter = &models.ClockWindow{
				Start: models.ClockTime(*tfStart),
				End:   models.ClockTime(*tfEnd),
			}
		}

		if returnEnabled {
			t.Return = &models.ReturnTripConfig{
				Timing:           returnTiming(returnExact, returnBreak),
				ToleranceMinutes: returnTolerance,
			}
		}

		if recurType != nil {
			pattern := &models.RecurrencePattern{
				Type:             models.RecurrenceType(*recurType),
				ToleranceMinutes: recurTolerance,
				EndDate:          recurEnd,
			}
			if recurRef != nil {
				pattern.Reference = calendar.DateOnly(*recurRef)
			}
			for _, d := range recurDays {
				pattern.Days = append(pattern.Days, weekdayFromISO(int(d)))
			}
			t.Recurrence = pattern
		}

		templates[t.ID] = t
		order = append(order, t.ID)
	}

	return templates, order, nil
}

func loadWaypoints(ctx context.Context, db *pgxpool.Pool, templates map[string]models.TripTemplate) error {
	rows, err := db.Query(ctx, `
		SELECT template_id, place_id, ord, is_fixed
		FROM template_waypoint
		ORDER BY template_id, ord
	`)
	if err != nil {
		return fmt.Errorf("failed to load waypoints: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var templateID string
		var wp models.TemplateWaypoint

		if err := rows.Scan(&templateID, &wp.PlaceID, &wp.Order, &wp.Fixed); err != nil {
			log.Printf("Warning: failed to scan waypoint: %v", err)
			continue
		}

		t, ok := templates[templateID]
		if !ok {
			continue
		}
		t.Waypoints = append(t.Waypoints, wp)
		templates[templateID] = t
		count++
	}

	log.Printf("  Loaded %d waypoints", count)
	return nil
}

func loadHolidays(ctx context.Context, db *pgxpool.Pool) ([]models.Holiday, error) {
	rows, err := db.Query(ctx, `
		SELECT id, date, name, type, country, COALESCE(region, ''), recurring
		FROM holiday
		ORDER BY date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load holidays: %w", err)
	}
	defer rows.Close()

	var holidays []models.Holiday
	for rows.Next() {
		var h models.Holiday
		var hType string
		if err := rows.Scan(&h.ID, &h.Date, &h.Name, &hType, &h.Country, &h.Region, &h.Recurring); err != nil {
			log.Printf("Warning: failed to scan holiday: %v", err)
			continue
		}
		h.Type = models.HolidayType(hType)
		holidays = append(holidays, h)
	}

	return holidays, nil
}

// returnTiming resolves the stored columns into the timing variant.
// A row with both or neither column set yields a nil timing, which
// template validation reports as a configuration error.
func returnTiming(exact, afterBreak *int) models.ReturnTiming {
	switch {
	case exact != nil && afterBreak == nil:
		return models.ReturnAtTime{Clock: models.ClockTime(*exact)}
	case afterBreak != nil && exact == nil:
		return models.ReturnAfterBreak{BreakMinutes: *afterBreak}
	default:
		return nil
	}
}

// weekdayFromISO maps 1=Monday..7=Sunday to time.Weekday
func weekdayFromISO(d int) time.Weekday {
	if d == 7 {
		return time.Sunday
	}
	return time.Weekday(d)
}

// Loaded reports whether the catalog has been populated
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// LoadedAt returns the time of the last successful load
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Templates returns a copy of all templates in stable order
func (c *Catalog) Templates() []models.TripTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.TripTemplate, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.templates[id])
	}
	return out
}

// TemplatesForVehicle returns the templates applying to one vehicle:
// those restricted to it plus those with no vehicle restriction
func (c *Catalog) TemplatesForVehicle(vehicleID string) []models.TripTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.TripTemplate
	for _, id := range c.order {
		t := c.templates[id]
		if t.VehicleID == "" || t.VehicleID == vehicleID {
			out = append(out, t)
		}
	}
	return out
}

// TemplateByID looks up a single template
func (c *Catalog) TemplateByID(id string) (models.TripTemplate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.templates[id]
	return t, ok
}

// Holidays returns a copy of the holiday catalog
func (c *Catalog) Holidays() []models.Holiday {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Holiday, len(c.holidays))
	copy(out, c.holidays)
	return out
}

// HolidaySet builds the holiday set for a country/region scope
func (c *Catalog) HolidaySet(country, region string) *calendar.HolidaySet {
	return calendar.NewHolidaySet(c.Holidays(), country, region)
}
