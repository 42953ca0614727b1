package api

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetlog/fleetlog_core/internal/cache"
	"github.com/fleetlog/fleetlog_core/internal/calendar"
	"github.com/fleetlog/fleetlog_core/internal/catalog"
	"github.com/fleetlog/fleetlog_core/internal/db"
	"github.com/fleetlog/fleetlog_core/internal/engine"
	"github.com/fleetlog/fleetlog_core/internal/models"
	"github.com/fleetlog/fleetlog_core/internal/recurrence"
)

// --- Request/response types ---

// MatchRequest is the body of the observation-match endpoint
type MatchRequest struct {
	VehicleID  string  `json:"vehicle_id"`
	DistanceKm float64 `json:"distance_km"`
	ObservedAt string  `json:"observed_at"`        // RFC 3339
	EndsAt     string  `json:"ends_at,omitempty"`  // RFC 3339, optional
	Country    string  `json:"country,omitempty"`  // holiday scope override
	Region     string  `json:"region,omitempty"`
}

// TemplateSummary is the wire form of a matched/candidate template
type TemplateSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	FromPlaceID string  `json:"from_place_id"`
	ToPlaceID   string  `json:"to_place_id"`
	DistanceKm  float64 `json:"distance_km"`
	Priority    int     `json:"priority"`
	Type        string  `json:"type"`
}

// SkippedTemplate reports a template excluded for a configuration error
type SkippedTemplate struct {
	TemplateID string `json:"template_id"`
	Reason     string `json:"reason"`
}

// LegInfo is the wire form of one planned leg
type LegInfo struct {
	FromPlaceID      string  `json:"from_place_id"`
	ToPlaceID        string  `json:"to_place_id"`
	Depart           string  `json:"depart,omitempty"` // HH:MM
	ToleranceMinutes int     `json:"tolerance_minutes"`
	DistanceKm       float64 `json:"distance_km"`
	IsReturn         bool    `json:"is_return,omitempty"`
}

// InstanceInfo is the wire form of a planned trip instance
type InstanceInfo struct {
	ID          string    `json:"id"`
	TemplateID  string    `json:"template_id"`
	VehicleID   string    `json:"vehicle_id"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Status      string    `json:"status"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	AllDay      bool      `json:"all_day,omitempty"`
	Legs        []LegInfo `json:"legs"`
}

// MatchResponse is the response of the observation-match endpoint
type MatchResponse struct {
	Outcome    string            `json:"outcome"`
	Template   *TemplateSummary  `json:"template,omitempty"`
	Candidates []TemplateSummary `json:"candidates,omitempty"`
	Instance   *InstanceInfo     `json:"instance,omitempty"`
	Skipped    []SkippedTemplate `json:"skipped_templates,omitempty"`
}

// GenerateResponse is the response of the trip generation endpoint
type GenerateResponse struct {
	VehicleID string            `json:"vehicle_id"`
	DateFrom  string            `json:"date_from"`
	DateTo    string            `json:"date_to"`
	Total     int               `json:"total"`
	Instances []InstanceInfo    `json:"instances"`
	Skipped   []SkippedTemplate `json:"skipped_templates,omitempty"`
}

// OccurrenceInfo is one eligible date in a template expansion
type OccurrenceInfo struct {
	Date     string `json:"date"`
	Workday  bool   `json:"workday"`
	Holiday  bool   `json:"holiday"`
	Eligible bool   `json:"eligible"` // after the template's own policy gates
}

// OccurrencesResponse is the response of the planner occurrences endpoint
type OccurrencesResponse struct {
	TemplateID string           `json:"template_id"`
	DateFrom   string           `json:"date_from"`
	DateTo     string           `json:"date_to"`
	Dates      []OccurrenceInfo `json:"dates"`
	Total      int              `json:"total"`
}

// --- Handlers ---

// Health handles GET /health
func Health(c *fiber.Ctx) error {
	ctx := c.Context()

	status := fiber.Map{
		"status":         "ok",
		"catalog_loaded": catalog.Get().Loaded(),
	}

	if err := db.HealthCheck(ctx); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
	} else {
		status["database"] = "ok"
	}

	if err := cache.HealthCheck(ctx); err != nil {
		status["status"] = "degraded"
		status["redis"] = err.Error()
	} else {
		status["redis"] = "ok"
	}

	code := 200
	if status["status"] != "ok" {
		code = 503
	}
	return c.Status(code).JSON(status)
}

// MatchObservation handles POST /v2/observations/match
func MatchObservation(c *fiber.Ctx) error {
	var req MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	if req.VehicleID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "vehicle_id is required"})
	}

	observedAt, err := time.Parse(time.RFC3339, req.ObservedAt)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid observed_at (use RFC 3339)"})
	}

	obs := models.OdometerObservation{
		VehicleID:  req.VehicleID,
		DistanceKm: req.DistanceKm,
		ObservedAt: observedAt,
	}
	if req.EndsAt != "" {
		endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid ends_at (use RFC 3339)"})
		}
		obs.EndsAt = &endsAt
	}

	cat := catalog.Get()
	templates := cat.TemplatesForVehicle(req.VehicleID)
	holidays := cat.HolidaySet(holidayScope(req.Country, req.Region))

	instance, result, err := engine.PlanFromObservation(obs, templates, holidays)
	if err != nil {
		if _, ok := err.(*models.InvalidObservationError); ok {
			return c.Status(422).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("Match error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	resp := MatchResponse{
		Outcome: string(result.Outcome),
		Skipped: skippedInfo(result.Skipped),
	}
	if result.Template != nil {
		s := templateSummary(*result.Template)
		resp.Template = &s
	}
	for _, cand := range result.Candidates {
		resp.Candidates = append(resp.Candidates, templateSummary(cand))
	}
	if instance != nil {
		i := instanceInfo(*instance)
		resp.Instance = &i
	}

	return c.JSON(resp)
}

// GenerateTrips handles GET /v2/trips/generate
func GenerateTrips(c *fiber.Ctx) error {
	vehicleID := c.Query("vehicle_id")
	if vehicleID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "vehicle_id is required"})
	}

	from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	ctx := c.Context()

	// Generation over long ranges is the expensive path; cache the
	// response and collapse concurrent identical requests onto one
	// computation via the lock.
	cacheKey := cache.GenerateKey(vehicleID, c.Query("from"), c.Query("to"))
	var cached GenerateResponse
	if err := cache.GetJSON(ctx, cacheKey, &cached); err == nil {
		return c.JSON(cached)
	}

	lockKey := cache.LockKey(cacheKey)
	acquired, lockErr := cache.AcquireLock(ctx, lockKey, 5*time.Second)
	if lockErr == nil && !acquired {
		if err := cache.WaitForResult(ctx, cacheKey, &cached, 5*time.Second); err == nil {
			return c.JSON(cached)
		}
		// Fall through and compute locally if waiting failed
	}
	if acquired {
		defer cache.ReleaseLock(ctx, lockKey)
	}

	cat := catalog.Get()
	templates := cat.TemplatesForVehicle(vehicleID)
	holidays := cat.HolidaySet(holidayScope(c.Query("country"), c.Query("region")))

	instances, skipped, err := engine.GenerateInstances(ctx, vehicleID, from, to, templates, holidays)
	if err != nil {
		log.Printf("Generation error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	resp := GenerateResponse{
		VehicleID: vehicleID,
		DateFrom:  from.Format("2006-01-02"),
		DateTo:    to.Format("2006-01-02"),
		Total:     len(instances),
		Instances: make([]InstanceInfo, 0, len(instances)),
		Skipped:   skippedInfo(skipped),
	}
	for _, inst := range instances {
		resp.Instances = append(resp.Instances, instanceInfo(inst))
	}

	if err := cache.SetJSON(ctx, cacheKey, resp, 5*time.Minute); err != nil {
		log.Printf("Cache set error: %v", err)
	}

	return c.JSON(resp)
}

// TemplateOccurrences handles GET /v2/templates/:id/occurrences
func TemplateOccurrences(c *fiber.Ctx) error {
	templateID := c.Params("id")
	if templateID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "template ID is required"})
	}

	from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	cat := catalog.Get()
	t, ok := cat.TemplateByID(templateID)
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "template not found"})
	}
	if t.Recurrence == nil {
		return c.Status(400).JSON(fiber.Map{"error": "template has no recurrence pattern"})
	}
	if err := t.Validate(); err != nil {
		return c.Status(422).JSON(fiber.Map{"error": err.Error()})
	}

	country, region := holidayScope(c.Query("country"), c.Query("region"))

	cacheKey := cache.OccurrencesKey(templateID, c.Query("from"), c.Query("to"), country, region)
	var cached OccurrencesResponse
	if err := cache.GetJSON(c.Context(), cacheKey, &cached); err == nil {
		return c.JSON(cached)
	}

	seq, err := recurrence.Expand(*t.Recurrence, from, to)
	if err != nil {
		return c.Status(422).JSON(fiber.Map{"error": err.Error()})
	}

	holidays := cat.HolidaySet(country, region)

	resp := OccurrencesResponse{
		TemplateID: t.ID,
		DateFrom:   from.Format("2006-01-02"),
		DateTo:     to.Format("2006-01-02"),
		Dates:      []OccurrenceInfo{},
	}

	seq.Each(func(date time.Time) bool {
		workday := calendar.IsWorkday(date)
		holiday := holidays.Contains(date)

		eligible := true
		if t.WorkdaysOnly && !workday {
			eligible = false
		}
		if holiday && !t.AllowOnHolidays {
			eligible = false
		}

		resp.Dates = append(resp.Dates, OccurrenceInfo{
			Date:     date.Format("2006-01-02"),
			Workday:  workday,
			Holiday:  holiday,
			Eligible: eligible,
		})
		return true
	})
	resp.Total = len(resp.Dates)

	if err := cache.SetJSON(c.Context(), cacheKey, resp, 5*time.Minute); err != nil {
		log.Printf("Cache set error: %v", err)
	}

	return c.JSON(resp)
}

// ReloadCatalog handles POST /v2/admin/reload
func ReloadCatalog(c *fiber.Ctx) error {
	pool, err := db.GetDB()
	if err != nil {
		log.Printf("Database error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	if err := catalog.Get().LoadFromDB(c.Context(), pool); err != nil {
		log.Printf("Catalog reload error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "catalog reload failed"})
	}

	return c.JSON(fiber.Map{
		"status":    "reloaded",
		"templates": len(catalog.Get().Templates()),
		"holidays":  len(catalog.Get().Holidays()),
	})
}

// --- Helpers ---

func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errParam("from and to are required (YYYY-MM-DD)")
	}

	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, errParam("invalid from date (use YYYY-MM-DD)")
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, errParam("invalid to date (use YYYY-MM-DD)")
	}

	return from, to, nil
}

type paramError string

func (e paramError) Error() string { return string(e) }

func errParam(msg string) error { return paramError(msg) }

// holidayScope resolves the country/region holiday scope, falling back
// to the deployment defaults
func holidayScope(country, region string) (string, string) {
	if country == "" {
		country = getEnv("HOLIDAY_COUNTRY", "SK")
	}
	if region == "" {
		region = os.Getenv("HOLIDAY_REGION")
	}
	return country, region
}

func templateSummary(t models.TripTemplate) TemplateSummary {
	return TemplateSummary{
		ID:          t.ID,
		Name:        t.Name,
		FromPlaceID: t.FromPlaceID,
		ToPlaceID:   t.ToPlaceID,
		DistanceKm:  t.DistanceKm,
		Priority:    t.Priority,
		Type:        string(t.DefaultType),
	}
}

func skippedInfo(skipped []models.ConfigurationError) []SkippedTemplate {
	var out []SkippedTemplate
	for _, s := range skipped {
		out = append(out, SkippedTemplate{TemplateID: s.TemplateID, Reason: s.Reason})
	}
	return out
}

func instanceInfo(inst models.PlannedTripInstance) InstanceInfo {
	info := InstanceInfo{
		ID:          inst.ID,
		TemplateID:  inst.TemplateID,
		VehicleID:   inst.VehicleID,
		Date:        inst.Date.Format("2006-01-02"),
		Status:      string(inst.Status),
		Type:        string(inst.Type),
		Description: inst.Description,
		AllDay:      inst.AllDay,
		Legs:        make([]LegInfo, 0, len(inst.Legs)),
	}

	for _, leg := range inst.Legs {
		li := LegInfo{
			FromPlaceID:      leg.FromPlaceID,
			ToPlaceID:        leg.ToPlaceID,
			ToleranceMinutes: leg.ToleranceMinutes,
			DistanceKm:       leg.DistanceKm,
			IsReturn:         leg.IsReturn,
		}
		if leg.Depart != nil {
			li.Depart = leg.Depart.String()
		}
		info.Legs = append(info.Legs, li)
	}

	return info
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
