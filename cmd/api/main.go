package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/fleetlog/fleetlog_core/internal/api"
	"github.com/fleetlog/fleetlog_core/internal/cache"
	"github.com/fleetlog/fleetlog_core/internal/catalog"
	"github.com/fleetlog/fleetlog_core/internal/db"
	"github.com/fleetlog/fleetlog_core/internal/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	log.Println("Starting FleetLog engine API...")

	// Initialize database connection
	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✓ Database connection established")

	// Initialize Redis connection
	rdb, err := cache.GetClient()
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.Close()
	log.Println("✓ Redis connection established")

	// Load template and holiday catalogs into memory
	if err := catalog.Get().LoadFromDB(context.Background(), pool); err != nil {
		log.Fatalf("Failed to load template catalog: %v", err)
	}
	log.Println("✓ Template catalog loaded into memory")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "FleetLog Engine API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	app.Get("/health", api.Health)

	v2 := app.Group("/v2")
	if getEnv("API_AUTH_ENABLED", "false") == "true" {
		v2.Use(middleware.AuthMiddleware(pool))
		v2.Use(middleware.RateLimitMiddleware(rdb))
		log.Println("✓ API key auth and rate limiting enabled")
	}

	v2.Post("/observations/match", api.MatchObservation)
	v2.Get("/trips/generate", api.GenerateTrips)
	v2.Get("/templates/:id/occurrences", api.TemplateOccurrences)
	v2.Post("/admin/reload", api.ReloadCatalog)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	// Get port from environment
	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	// Start server
	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("📍 Match: POST http://localhost%s/v2/observations/match", addr)
	log.Printf("📅 Generate: http://localhost%s/v2/trips/generate?vehicle_id=ID&from=YYYY-MM-DD&to=YYYY-MM-DD", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
