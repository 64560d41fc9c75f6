package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/flowmarkt/flowmarkt/app/repository"
	"github.com/flowmarkt/flowmarkt/internal/pkg/database"
	"github.com/flowmarkt/flowmarkt/internal/pkg/payment"
	"github.com/flowmarkt/flowmarkt/internal/pkg/usercontext"
)

// HandleListMySubscriptions returns the buyer's subscriptions with the
// subscribed automations preloaded.
func HandleListMySubscriptions(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	subs, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetByBuyerID(userCtx.UserID)
	if err != nil {
		log.Printf("list subscriptions for user %d failed: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load subscriptions")
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}

// HandleCancelSubscription cancels a buyer's own subscription. Canceling an
// already-canceled subscription is a no-op.
func HandleCancelSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid subscription id")
	}

	sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetByID(uint(id))
	if err != nil || sub.BuyerID != userCtx.UserID {
		return jsonError(c, fiber.StatusNotFound, "not_found", "subscription not found")
	}

	svc := payment.NewServiceFromDB(database.GetDB(), payment.NewStripeClientFromEnv())
	if err := svc.CancelSubscription(c.Context(), sub); err != nil {
		log.Printf("cancel subscription %d failed: %v", sub.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not cancel subscription")
	}

	return c.JSON(sub)
}
