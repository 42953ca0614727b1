package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware enforces per-second and per-day request limits
// for the authenticated organization using Redis counters
func RateLimitMiddleware(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		org, ok := c.Locals("org").(*OrgContext)
		if !ok {
			// No org context means auth is disabled; nothing to limit against
			return c.Next()
		}

		rateLimits, ok := c.Locals("rate_limits").(map[string]int)
		if !ok {
			rateLimits = map[string]int{
				"per_second": 10,
				"per_day":    10000,
			}
		}

		ctx := context.Background()
		now := time.Now()

		keySecond := fmt.Sprintf("rl:org:%s:second:%d", org.OrgID, now.Unix())
		keyDay := fmt.Sprintf("rl:org:%s:day:%s", org.OrgID, now.Format("2006-01-02"))

		if limit := rateLimits["per_second"]; limit > 0 {
			count, err := rdb.Incr(ctx, keySecond).Result()
			if err == nil {
				rdb.Expire(ctx, keySecond, 2*time.Second)

				if count > int64(limit) {
					c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limit))
					c.Set("X-RateLimit-Remaining-Second", "0")
					c.Set("Retry-After", "1")

					return c.Status(429).JSON(fiber.Map{
						"error":      "rate_limit_exceeded",
						"message":    "Too many requests per second",
						"limit_type": "per_second",
					})
				}

				c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limit))
				c.Set("X-RateLimit-Remaining-Second", strconv.FormatInt(int64(limit)-count, 10))
			}
		}

		if limit := rateLimits["per_day"]; limit > 0 {
			count, err := rdb.Incr(ctx, keyDay).Result()
			if err == nil {
				rdb.Expire(ctx, keyDay, 48*time.Hour)

				if count > int64(limit) {
					midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

					c.Set("X-RateLimit-Limit-Day", strconv.Itoa(limit))
					c.Set("X-RateLimit-Remaining-Day", "0")
					c.Set("Retry-After", strconv.Itoa(int(time.Until(midnight).Seconds())))

					return c.Status(429).JSON(fiber.Map{
						"error":      "rate_limit_exceeded",
						"message":    "Daily request quota exhausted",
						"limit_type": "per_day",
					})
				}

				c.Set("X-RateLimit-Limit-Day", strconv.Itoa(limit))
				c.Set("X-RateLimit-Remaining-Day", strconv.FormatInt(int64(limit)-count, 10))
			}
		}

		return c.Next()
	}
}
