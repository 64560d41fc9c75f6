package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/flowmarkt/flowmarkt/internal/pkg/session"
	"github.com/flowmarkt/flowmarkt/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request
// This centralizes user session handling and eliminates code duplication
func UserContextMiddleware(c *fiber.Ctx) error {
	// Avoid interfering with Goth/Fiber session handling on OAuth routes.
	// Goth uses its own fiber session store and relies on per-request locals.
	// We skip our app session on /auth/* to prevent cross-store collisions.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	// Get session with error handling
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return anonymousContext(c)
	}

	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		return anonymousContext(c)
	}

	username, _ := sess.Get(usercontext.KeyUsername).(string)
	role, _ := sess.Get(usercontext.KeyUserRole).(string)

	userCtx := usercontext.UserContext{
		UserID:     userID.(uint),
		Username:   username,
		Role:       role,
		IsLoggedIn: true,
	}
	c.Locals("USER_CONTEXT", userCtx)
	c.Locals(usercontext.KeyFromProtected, true)
	c.Locals(usercontext.KeyUserID, userCtx.UserID)
	c.Locals(usercontext.KeyUsername, username)
	c.Locals(usercontext.KeyUserRole, role)

	return c.Next()
}

func anonymousContext(c *fiber.Ctx) error {
	c.Locals("USER_CONTEXT", usercontext.UserContext{IsLoggedIn: false})
	c.Locals(usercontext.KeyFromProtected, false)
	return c.Next()
}
