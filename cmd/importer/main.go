package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetlog/fleetlog_core/internal/db"
	"github.com/fleetlog/fleetlog_core/internal/models"
)

func main() {
	// Command-line flags
	csvPath := flag.String("csv", "", "Path to holiday CSV file (required)")
	country := flag.String("country", "", "Default country code for rows without one")

	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: fleetlog-import --csv=<holidays.csv> [--country=SK]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(*csvPath); os.IsNotExist(err) {
		log.Fatalf("CSV file not found: %s", *csvPath)
	}

	log.Println("Starting holiday import...")
	log.Printf("CSV file: %s", *csvPath)

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	importLogID, err := createImportLog(ctx, pool, *csvPath)
	if err != nil {
		log.Fatalf("Failed to create import log: %v", err)
	}

	count, err := runImport(ctx, pool, *csvPath, *country)
	if err != nil {
		updateImportLog(ctx, pool, importLogID, "failed", 0, err.Error())
		log.Fatalf("Import failed: %v", err)
	}

	if err := updateImportLog(ctx, pool, importLogID, "success", count, ""); err != nil {
		log.Printf("Warning: failed to update import log: %v", err)
	}

	log.Println("Import completed successfully!")
}

func runImport(ctx context.Context, pool *pgxpool.Pool, csvPath, defaultCountry string) (int, error) {
	startTime := time.Now()

	log.Println("Step 1/2: Parsing holiday CSV...")
	holidays, err := parseHolidayCSV(csvPath, defaultCountry)
	if err != nil {
		return 0, fmt.Errorf("failed to parse CSV: %w", err)
	}
	log.Printf("  Parsed %d holidays", len(holidays))

	log.Println("Step 2/2: Importing holidays to database...")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := importHolidays(ctx, tx, holidays); err != nil {
		return 0, fmt.Errorf("failed to import holidays: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Import completed in %s", time.Since(startTime))
	return len(holidays), nil
}

// parseHolidayCSV reads rows of date,name,type,country,region,recurring.
// The first row is skipped when it looks like a header.
func parseHolidayCSV(path, defaultCountry string) ([]models.Holiday, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var holidays []models.Holiday
	line := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected at least date,name", line)
		}

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "date") {
			continue
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q (use YYYY-MM-DD)", line, record[0])
		}

		h := models.Holiday{
			ID:      uuid.NewString(),
			Date:    date,
			Name:    strings.TrimSpace(record[1]),
			Type:    models.HolidayPublic,
			Country: defaultCountry,
		}

		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			switch t := models.HolidayType(strings.ToLower(strings.TrimSpace(record[2]))); t {
			case models.HolidayPublic, models.HolidayCompany, models.HolidayRegional:
				h.Type = t
			default:
				return nil, fmt.Errorf("line %d: unknown holiday type %q", line, record[2])
			}
		}
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			h.Country = strings.ToUpper(strings.TrimSpace(record[3]))
		}
		if len(record) > 4 {
			h.Region = strings.TrimSpace(record[4])
		}
		if len(record) > 5 {
			h.Recurring = strings.EqualFold(strings.TrimSpace(record[5]), "true")
		}

		holidays = append(holidays, h)
	}

	return holidays, nil
}

func importHolidays(ctx context.Context, tx pgx.Tx, holidays []models.Holiday) error {
	batch := &pgx.Batch{}

	for _, h := range holidays {
		batch.Queue(`
			INSERT INTO holiday (id, date, name, type, country, region, recurring)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
			ON CONFLICT (date, name, country) DO UPDATE
			SET type = EXCLUDED.type,
			    region = EXCLUDED.region,
			    recurring = EXCLUDED.recurring
		`, h.ID, h.Date, h.Name, string(h.Type), h.Country, h.Region, h.Recurring)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert holiday %d: %w", i, err)
		}
	}

	log.Printf("Imported %d holidays", len(holidays))
	return nil
}

func createImportLog(ctx context.Context, pool *pgxpool.Pool, source string) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO import_log (source, status)
		VALUES ($1, 'running')
		RETURNING id
	`, source).Scan(&id)

	return id, err
}

func updateImportLog(ctx context.Context, pool *pgxpool.Pool, id int64, status string, count int, errMsg string) error {
	message := errMsg
	if status == "success" {
		message = fmt.Sprintf("Imported %d holidays", count)
	}

	_, err := pool.Exec(ctx, `
		UPDATE import_log
		SET completed_at = NOW(),
		    status = $2,
		    message = $3
		WHERE id = $1
	`, id, status, message)

	return err
}
