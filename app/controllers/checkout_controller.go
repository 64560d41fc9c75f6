package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/flowmarkt/flowmarkt/app/repository"
	"github.com/flowmarkt/flowmarkt/internal/pkg/database"
	"github.com/flowmarkt/flowmarkt/internal/pkg/payment"
	"github.com/flowmarkt/flowmarkt/internal/pkg/usercontext"
)

type checkoutRequest struct {
	AutomationID string  `json:"automationId"`
	PriceMonthly float64 `json:"priceMonthly"`
	SetupFee     float64 `json:"setupFee"`
	Title        string  `json:"title"`
}

// HandleCreateCheckout opens a hosted checkout session for an automation
// subscription and returns the redirect URL.
func HandleCreateCheckout(c *fiber.Ctx) error {
	gateway := payment.NewStripeClientFromEnv()
	if !gateway.Enabled() {
		return jsonError(c, fiber.StatusServiceUnavailable, "payments_unconfigured", "payment gateway is not configured")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if req.AutomationID == "" || req.Title == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "automationId and title are required")
	}
	if req.PriceMonthly < 0 || req.SetupFee < 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "prices must not be negative")
	}

	userCtx := usercontext.GetUserContext(c)
	var buyerEmail string
	if userCtx.IsLoggedIn {
		if user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID); err == nil {
			buyerEmail = user.Email
		}
	}

	svc := payment.NewServiceFromDB(database.GetDB(), gateway)
	url, err := svc.InitiateCheckout(c.Context(), payment.CheckoutInput{
		AutomationUUID: req.AutomationID,
		Title:          req.Title,
		PriceMonthly:   req.PriceMonthly,
		SetupFee:       req.SetupFee,
		BaseURL:        requestBaseURL(c),
		BuyerID:        userCtx.UserID,
		BuyerEmail:     buyerEmail,
	})
	if err != nil {
		if errors.Is(err, payment.ErrAutomationNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "automation not found")
		}
		log.Printf("checkout session creation failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "checkout_failed", "could not create checkout session")
	}

	return c.JSON(fiber.Map{"url": url})
}
