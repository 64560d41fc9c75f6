package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flowmarkt/flowmarkt/app/models"
)

// UserContext represents the complete user context for a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// IsAdmin reports whether the context belongs to an admin.
func (u UserContext) IsAdmin() bool {
	return u.IsLoggedIn && u.Role == models.ROLE_ADMIN
}

// IsSeller reports whether the context may manage automations. Admins are
// implicitly sellers.
func (u UserContext) IsSeller() bool {
	return u.IsLoggedIn && (u.Role == models.ROLE_SELLER || u.Role == models.ROLE_ADMIN)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals("USER_CONTEXT"); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{IsLoggedIn: false}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
