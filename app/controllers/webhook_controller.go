package controllers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/flowmarkt/flowmarkt/internal/pkg/database"
	"github.com/flowmarkt/flowmarkt/internal/pkg/env"
	"github.com/flowmarkt/flowmarkt/internal/pkg/payment"
)

// HandleStripeWebhook ingests gateway events. The signature is verified
// before anything touches the store; recognized events are recorded in the
// dedup ledger and reconciled. Only a store failure during a recognized event
// returns a non-2xx so the gateway retries the delivery.
func HandleStripeWebhook(c *fiber.Ctx) error {
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	if secret == "" {
		return jsonError(c, fiber.StatusServiceUnavailable, "payments_unconfigured", "webhook secret is not configured")
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")
	if !payment.VerifyStripeWebhookSignature(rawBody, signature, secret, time.Now()) {
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
	}

	event, err := payment.ParseEvent(rawBody)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "could not parse webhook payload")
	}

	svc := payment.NewServiceFromDB(database.GetDB(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := svc.RecordWebhookEvent(ctx, payment.WebhookEventInput{
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		log.Printf("webhook persist failed for event %s: %v", event.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "webhook_persist_failed", "could not record webhook event")
	}
	if !created && !stored.NeedsProcessing() {
		// Replay of a successfully processed delivery. A redelivery of a
		// pending or failed one falls through and is reconciled again.
		return c.JSON(fiber.Map{"received": true})
	}

	if err := svc.ReconcileEvent(ctx, event); err != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, err)
		log.Printf("webhook reconcile failed for event %s (%s): %v", event.ID, event.Type, err)
		return jsonError(c, fiber.StatusInternalServerError, "webhook_processing_failed", "could not process webhook event")
	}

	_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
	return c.JSON(fiber.Map{"received": true})
}
