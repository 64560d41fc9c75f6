package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/flowmarkt/flowmarkt/app/controllers"
	"github.com/flowmarkt/flowmarkt/internal/pkg/middleware"
)

// APIServer implements the versioned JSON API surface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// RegisterHandlers attaches all v1 routes to the given router group.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	// Public catalog
	router.Get("/categories", controllers.HandleListCategories)
	router.Get("/automations", controllers.HandleListAutomations)
	router.Get("/automations/:slug", controllers.HandleGetAutomation)
	router.Get("/automations/:slug/reviews", controllers.HandleListAutomationReviews)

	// Session auth
	auth := router.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)
	auth.Post("/logout", middleware.RequireAPISessionAuth, controllers.HandleLogout)
	auth.Get("/me", middleware.RequireAPISessionAuth, controllers.HandleMe)

	// Buyer surface
	router.Post("/automations/:slug/reviews", middleware.RequireAPISessionAuth, controllers.HandleCreateReview)
	router.Get("/subscriptions", middleware.RequireAPISessionAuth, controllers.HandleListMySubscriptions)
	router.Post("/subscriptions/:id/cancel", middleware.RequireAPISessionAuth, controllers.HandleCancelSubscription)

	// Seller surface
	seller := router.Group("/seller", middleware.RequireSeller)
	seller.Get("/automations", controllers.HandleSellerListAutomations)
	seller.Post("/automations", controllers.HandleSellerCreateAutomation)
	seller.Put("/automations/:uuid", controllers.HandleSellerUpdateAutomation)
	seller.Delete("/automations/:uuid", controllers.HandleSellerDeleteAutomation)
	seller.Post("/automations/:uuid/thumbnail", controllers.HandleSellerUploadThumbnail)

	// Admin surface
	admin := router.Group("/admin", middleware.RequireAdmin)
	admin.Get("/automations", controllers.HandleAdminListAutomations)
	admin.Post("/automations/:uuid/approve", controllers.HandleAdminApproveAutomation)
	admin.Post("/automations/:uuid/reject", controllers.HandleAdminRejectAutomation)
	admin.Get("/users", controllers.HandleAdminListUsers)
	admin.Get("/stats", controllers.HandleAdminStats)
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}
