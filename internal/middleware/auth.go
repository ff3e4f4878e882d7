package middleware

import (
	"strings"

	"go-letters/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware validates JWT tokens and injects user claims into context
func AuthMiddleware(skipAuth bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipAuth {
			// Dev mode: the caller may impersonate a user through X-Dev-User
			userID := c.Get("X-Dev-User", "dev-admin-id")
			roles := strings.Split(c.Get("X-Dev-Roles", "admin"), ",")
			c.Locals(utils.UserClaimsKey, &utils.UserClaims{UserID: userID, Roles: roles})
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		// Extract token from "Bearer <token>"
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		claims, err := utils.ValidateToken(authHeader[7:])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(utils.UserClaimsKey, claims)
		return c.Next()
	}
}

// Claims returns the authenticated user's claims, or nil outside AuthMiddleware
func Claims(c *fiber.Ctx) *utils.UserClaims {
	claims, _ := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	return claims
}

// TokenFromQuery lets clients that cannot set headers, such as browser
// websockets, pass the JWT as ?token=.
func TokenFromQuery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := c.Query("token"); token != "" && c.Get("Authorization") == "" {
			c.Request().Header.Set("Authorization", "Bearer "+token)
		}
		return c.Next()
	}
}
