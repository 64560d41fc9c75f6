package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/flowmarkt/flowmarkt/app/controllers"
	"github.com/flowmarkt/flowmarkt/internal/pkg/middleware"
	"github.com/flowmarkt/flowmarkt/internal/pkg/oauth"
	"github.com/flowmarkt/flowmarkt/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Initialize review controller with repositories
	controllers.InitializeReviewController()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// OAuth login flow (Google)
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	// Gateway webhooks bypass the API rate limiter; the signature check is
	// the gate here.
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
