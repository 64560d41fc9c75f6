package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/flowmarkt/flowmarkt/app/models"
	"gorm.io/gorm"
)

// ErrAutomationNotFound is returned when checkout references an unknown
// automation.
var ErrAutomationNotFound = errors.New("automation not found")

// Service coordinates checkout initiation and webhook reconciliation. The
// gateway is the authority for true subscription state; local rows are a
// cache converged via events.
type Service struct {
	repo    Repository
	gateway *StripeClient
}

// NewService creates a payment service from an injected repository and
// gateway client.
func NewService(repo Repository, gateway *StripeClient) *Service {
	return &Service{repo: repo, gateway: gateway}
}

// NewServiceFromDB creates a payment service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway *StripeClient) *Service {
	return NewService(NewRepository(db), gateway)
}

// CheckoutInput carries a checkout request. BuyerID zero means anonymous; the
// price and title are snapshots supplied by the caller.
type CheckoutInput struct {
	AutomationUUID string
	Title          string
	PriceMonthly   float64
	SetupFee       float64
	BaseURL        string
	BuyerID        uint
	BuyerEmail     string
}

// InitiateCheckout opens a hosted checkout session and, for authenticated
// buyers, records a local subscription row in incomplete state keyed by the
// session id. The install counter is untouched until the gateway confirms
// payment via webhook.
func (s *Service) InitiateCheckout(ctx context.Context, in CheckoutInput) (string, error) {
	uuid := strings.TrimSpace(in.AutomationUUID)
	if uuid == "" || strings.TrimSpace(in.Title) == "" {
		return "", errors.New("automation id and title are required")
	}

	automation, err := s.repo.GetAutomationByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAutomationNotFound
		}
		return "", err
	}

	base := strings.TrimRight(in.BaseURL, "/")
	metadata := map[string]string{
		"automationId": uuid,
		"buyerId":      "",
	}
	if in.BuyerID != 0 {
		metadata["buyerId"] = strconv.FormatUint(uint64(in.BuyerID), 10)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutSessionParams{
		LineItems:     BuildSubscriptionLineItems(in.Title, in.PriceMonthly, in.SetupFee),
		SuccessURL:    base + "/dashboard/buyer?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     base + "/marketplace/" + uuid,
		CustomerEmail: in.BuyerEmail,
		Metadata:      metadata,
	})
	if err != nil {
		return "", err
	}

	if in.BuyerID != 0 {
		if err := s.recordPendingSubscription(automation, in, session.ID); err != nil {
			return "", err
		}
	}

	return session.URL, nil
}

// recordPendingSubscription creates or refreshes the local row for the
// (buyer, automation) pair. An existing non-canceled row is reused so the
// pair never accumulates parallel open subscriptions.
func (s *Service) recordPendingSubscription(automation *models.Automation, in CheckoutInput, sessionID string) error {
	existing, err := s.repo.FindOpenSubscription(in.BuyerID, automation.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing != nil {
		existing.StripeSubscriptionID = sessionID
		existing.MonthlyPrice = in.PriceMonthly
		return s.repo.SaveSubscription(existing)
	}

	return s.repo.CreateSubscription(&models.Subscription{
		AutomationID:         automation.ID,
		BuyerID:              in.BuyerID,
		Status:               models.SubscriptionStatusIncomplete,
		StripeSubscriptionID: sessionID,
		MonthlyPrice:         in.PriceMonthly,
	})
}

// WebhookEventInput captures a delivered webhook for the dedup ledger.
type WebhookEventInput struct {
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool is false when the event id was already recorded.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		return false, nil, errors.New("provider event id is required")
	}

	event := &models.WebhookEvent{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook event id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// ReconcileEvent applies one gateway event to local state. Unrecognized event
// types and lookups that miss are acknowledged no-ops; only store failures
// during a recognized event return an error (which signals the gateway to
// retry the delivery).
func (s *Service) ReconcileEvent(ctx context.Context, event *Event) error {
	_ = ctx
	switch strings.TrimSpace(event.Type) {
	case EventCheckoutSessionCompleted:
		return s.applyCheckoutCompleted(event)
	case EventSubscriptionUpdated:
		return s.applySubscriptionStatus(event, "")
	case EventSubscriptionDeleted:
		return s.applySubscriptionStatus(event, models.SubscriptionStatusCanceled)
	default:
		return nil
	}
}

func (s *Service) applyCheckoutCompleted(event *Event) error {
	session, err := event.checkoutSession()
	if err != nil {
		return err
	}

	buyerID := parseBuyerID(session.Metadata["buyerId"])
	subscriptionID := strings.TrimSpace(session.Subscription)
	if buyerID == 0 || subscriptionID == "" || session.Metadata["automationId"] == "" {
		// Anonymous checkout or incomplete metadata; nothing to correlate.
		return nil
	}

	sub, err := s.repo.GetSubscriptionBySession(session.ID, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	// Same monotonicity guard as subscription events: a completion retried
	// past a newer transition must not overwrite it.
	occurredAt := event.OccurredAt()
	if sub.LastEventAt != nil && occurredAt.Before(*sub.LastEventAt) {
		return nil
	}

	// Promotion from incomplete is the single point where an install counts.
	if sub.Status == models.SubscriptionStatusIncomplete {
		if err := s.repo.IncrementInstallCount(sub.AutomationID); err != nil {
			return err
		}
	}

	sub.StripeSubscriptionID = subscriptionID
	sub.Status = models.SubscriptionStatusActive
	sub.LastEventAt = &occurredAt
	return s.repo.SaveSubscription(sub)
}

// applySubscriptionStatus handles customer.subscription.* events keyed by the
// gateway's durable subscription id. forcedStatus overrides the mapped status
// (used for deletion). Events older than the newest applied one are
// acknowledged without being applied so a stale update cannot resurrect a
// canceled subscription.
func (s *Service) applySubscriptionStatus(event *Event, forcedStatus string) error {
	object, err := event.subscription()
	if err != nil {
		return err
	}

	sub, err := s.repo.GetSubscriptionByProviderID(object.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	occurredAt := event.OccurredAt()
	if sub.LastEventAt != nil && occurredAt.Before(*sub.LastEventAt) {
		return nil
	}

	status := forcedStatus
	if status == "" {
		status = MapGatewayStatus(object.Status)
	}

	sub.Status = status
	sub.LastEventAt = &occurredAt
	return s.repo.SaveSubscription(sub)
}

// CancelSubscription performs a buyer-initiated cancellation. The gateway
// cancel is best effort: the local row converges to canceled regardless, and
// a later deletion webhook is a no-op.
func (s *Service) CancelSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.IsCanceled() {
		return nil
	}

	if s.gateway != nil && s.gateway.Enabled() && strings.HasPrefix(sub.StripeSubscriptionID, "sub_") {
		_ = s.gateway.CancelSubscription(ctx, sub.StripeSubscriptionID)
	}

	now := time.Now().UTC()
	sub.Status = models.SubscriptionStatusCanceled
	sub.LastEventAt = &now
	return s.repo.SaveSubscription(sub)
}

func parseBuyerID(raw string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}
