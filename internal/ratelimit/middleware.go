package ratelimit

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Middleware rejects callers whose bucket is empty with 429. A limiter
// error lets the request through.
func Middleware(limiter Limiter, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, err := limiter.Allow(c.UserContext(), c.IP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, "60")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{"kind": "rate_limited", "message": "too many verification requests"},
			})
		}
		return c.Next()
	}
}
