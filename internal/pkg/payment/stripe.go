package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flowmarkt/flowmarkt/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com"

// StripeClient is a minimal REST client for the checkout and subscription
// endpoints this service needs. Requests are form-encoded as the Stripe API
// expects.
type StripeClient struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

// CheckoutLineItem describes one priced line on a checkout session. Recurring
// items bill monthly; non-recurring items are charged once on the first
// invoice.
type CheckoutLineItem struct {
	Name        string
	Description string
	UnitAmount  int64 // cents
	Recurring   bool
}

// CheckoutSessionParams carries everything needed to open a hosted checkout.
type CheckoutSessionParams struct {
	LineItems     []CheckoutLineItem
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

// CheckoutSession is the subset of the gateway session object we consume.
type CheckoutSession struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Subscription string `json:"subscription"`
}

func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Enabled reports whether the gateway is configured. Checkout degrades to a
// disabled state when it is not, instead of failing at request time.
func (c *StripeClient) Enabled() bool {
	return c.SecretKey != ""
}

// BuildSubscriptionLineItems builds the line items for an automation
// subscription: one recurring monthly item, plus a one-time setup fee item
// when the fee is positive. Amounts are euro prices converted to cents.
func BuildSubscriptionLineItems(title string, priceMonthly, setupFee float64) []CheckoutLineItem {
	items := []CheckoutLineItem{
		{
			Name:        title,
			Description: fmt.Sprintf("Monthly subscription for %s", title),
			UnitAmount:  eurosToCents(priceMonthly),
			Recurring:   true,
		},
	}

	if setupFee > 0 {
		items = append(items, CheckoutLineItem{
			Name:        fmt.Sprintf("%s - Setup Fee", title),
			Description: "One-time setup and onboarding fee",
			UnitAmount:  eurosToCents(setupFee),
		})
	}

	return items
}

func eurosToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Encode renders the params as the form body for POST /v1/checkout/sessions.
func (p CheckoutSessionParams) Encode() url.Values {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	if p.CustomerEmail != "" {
		form.Set("customer_email", p.CustomerEmail)
	}

	for i, item := range p.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", "eur")
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		if item.Description != "" {
			form.Set(prefix+"[price_data][product_data][description]", item.Description)
		}
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		if item.Recurring {
			form.Set(prefix+"[price_data][recurring][interval]", "month")
		}
		form.Set(prefix+"[quantity]", "1")
	}

	for key, value := range p.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	return form
}

// CreateCheckoutSession opens a hosted checkout session and returns its id
// and redirect URL.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if !c.Enabled() {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	if len(params.LineItems) == 0 {
		return nil, errors.New("at least one line item is required")
	}
	if params.SuccessURL == "" || params.CancelURL == "" {
		return nil, errors.New("success_url and cancel_url are required")
	}

	body, err := c.postForm(ctx, "/v1/checkout/sessions", params.Encode())
	if err != nil {
		return nil, err
	}

	var out CheckoutSession
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("stripe checkout session response missing id")
	}
	return &out, nil
}

// CancelSubscription cancels the subscription at the gateway. Stripe treats
// repeated cancellation of an already-canceled subscription as an error, so
// callers should treat failures here as best effort.
func (c *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return errors.New("subscription id is required")
	}
	if !c.Enabled() {
		return errors.New("STRIPE_SECRET_KEY is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.APIBaseURL+"/v1/subscriptions/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe subscription cancel failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *StripeClient) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return body, nil
}
