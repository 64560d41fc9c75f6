package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flowmarkt/flowmarkt/internal/pkg/usercontext"
)

// RequireAPISessionAuth ensures a logged-in session for API routes and returns JSON 401.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !usercontext.GetUserContext(c).IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireSeller ensures the session belongs to a seller (or admin).
func RequireSeller(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if !userCtx.IsSeller() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "seller account required",
		})
	}
	return c.Next()
}

// RequireAdmin ensures the session belongs to an admin.
func RequireAdmin(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if !userCtx.IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin account required",
		})
	}
	return c.Next()
}
