package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrgContext holds the authenticated organization for the request
type OrgContext struct {
	OrgID    string
	APIKeyID string
	Name     string
	Scopes   []string
}

// AuthMiddleware validates the API key and loads the owning organization
func AuthMiddleware(db *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{
				"error":   "missing_api_key",
				"message": "API key is required. Use Authorization: Bearer YOUR_API_KEY",
			})
		}

		// Format: "Bearer fk_live_..."
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(401).JSON(fiber.Map{
				"error":   "invalid_auth_format",
				"message": "Authorization header must be in format: Bearer YOUR_API_KEY",
			})
		}

		apiKey := strings.TrimSpace(parts[1])
		if !strings.HasPrefix(apiKey, "fk_") {
			return c.Status(401).JSON(fiber.Map{
				"error":   "invalid_api_key_format",
				"message": "API key must start with fk_",
			})
		}

		hash := sha256.Sum256([]byte(apiKey))
		keyHash := hex.EncodeToString(hash[:])

		ctx := c.Context()

		var org OrgContext
		var orgStatus string
		var rateLimitPerSecond, rateLimitPerDay int

		err := db.QueryRow(ctx, `
			SELECT ak.id, ak.org_id, ak.scopes,
			       o.name, o.status,
			       o.rate_limit_per_second, o.rate_limit_per_day
			FROM api_key ak
			JOIN organization o ON o.id = ak.org_id
			WHERE ak.key_hash = $1
			  AND ak.is_active = true
		`, keyHash).Scan(
			&org.APIKeyID, &org.OrgID, &org.Scopes,
			&org.Name, &orgStatus,
			&rateLimitPerSecond, &rateLimitPerDay,
		)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{
				"error":   "invalid_api_key",
				"message": "API key not found or revoked",
			})
		}

		if orgStatus != "active" {
			return c.Status(403).JSON(fiber.Map{
				"error":   "organization_suspended",
				"message": "This organization is not active",
			})
		}

		// Record key usage without blocking the request
		go func(keyID string) {
			bg, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if _, err := db.Exec(bg, `UPDATE api_key SET last_used_at = NOW() WHERE id = $1`, keyID); err != nil {
				log.Printf("Failed to record API key usage: %v", err)
			}
		}(org.APIKeyID)

		c.Locals("org", &org)
		c.Locals("rate_limits", map[string]int{
			"per_second": rateLimitPerSecond,
			"per_day":    rateLimitPerDay,
		})

		return c.Next()
	}
}

// RequireScope rejects requests whose API key lacks the given scope
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		org, ok := c.Locals("org").(*OrgContext)
		if !ok {
			return c.Status(401).JSON(fiber.Map{"error": "unauthenticated"})
		}

		for _, s := range org.Scopes {
			if s == scope || s == "*" {
				return c.Next()
			}
		}

		return c.Status(403).JSON(fiber.Map{
			"error":   "insufficient_scope",
			"message": "API key does not have the required scope: " + scope,
		})
	}
}
