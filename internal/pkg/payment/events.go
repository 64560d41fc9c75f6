package payment

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Gateway event types this service reconciles. Anything else is acknowledged
// without processing so new gateway event types never break delivery.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

// Event is the gateway webhook envelope. Data.Object stays raw until the
// event type selects the concrete shape.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSessionObject is the data object of checkout.session.completed.
type CheckoutSessionObject struct {
	ID           string            `json:"id"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// SubscriptionObject is the data object of customer.subscription.* events.
type SubscriptionObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ParseEvent decodes the webhook envelope.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, errors.New("webhook event missing id")
	}
	return &event, nil
}

// OccurredAt returns the event creation time, falling back to now for
// payloads without a timestamp.
func (e *Event) OccurredAt() time.Time {
	if e.Created == 0 {
		return time.Now().UTC()
	}
	return time.Unix(e.Created, 0).UTC()
}

func (e *Event) checkoutSession() (*CheckoutSessionObject, error) {
	var session CheckoutSessionObject
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil, err
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, errors.New("checkout session object missing id")
	}
	return &session, nil
}

func (e *Event) subscription() (*SubscriptionObject, error) {
	var sub SubscriptionObject
	if err := json.Unmarshal(e.Data.Object, &sub); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, errors.New("subscription object missing id")
	}
	return &sub, nil
}
