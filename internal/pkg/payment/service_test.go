package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flowmarkt/flowmarkt/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakePaymentRepository is an in-memory Repository for service tests.
type fakePaymentRepository struct {
	automations   map[string]*models.Automation
	subscriptions []*models.Subscription
	webhookEvents map[string]*models.WebhookEvent
	installCounts map[uint]int
	nextID        uint
	saveErr       error
}

func newFakePaymentRepository() *fakePaymentRepository {
	return &fakePaymentRepository{
		automations:   make(map[string]*models.Automation),
		webhookEvents: make(map[string]*models.WebhookEvent),
		installCounts: make(map[uint]int),
		nextID:        1,
	}
}

func (f *fakePaymentRepository) addAutomation(uuid string, id uint) *models.Automation {
	automation := &models.Automation{UUID: uuid}
	automation.ID = id
	f.automations[uuid] = automation
	return automation
}

func (f *fakePaymentRepository) GetAutomationByUUID(uuid string) (*models.Automation, error) {
	if automation, ok := f.automations[uuid]; ok {
		return automation, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepository) IncrementInstallCount(automationID uint) error {
	f.installCounts[automationID]++
	return nil
}

func (f *fakePaymentRepository) FindOpenSubscription(buyerID, automationID uint) (*models.Subscription, error) {
	for i := len(f.subscriptions) - 1; i >= 0; i-- {
		sub := f.subscriptions[i]
		if sub.BuyerID == buyerID && sub.AutomationID == automationID && !sub.IsCanceled() {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepository) CreateSubscription(sub *models.Subscription) error {
	sub.ID = f.nextID
	f.nextID++
	f.subscriptions = append(f.subscriptions, sub)
	return nil
}

func (f *fakePaymentRepository) SaveSubscription(sub *models.Subscription) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	for i, existing := range f.subscriptions {
		if existing.ID == sub.ID {
			f.subscriptions[i] = sub
			return nil
		}
	}
	f.subscriptions = append(f.subscriptions, sub)
	return nil
}

func (f *fakePaymentRepository) GetSubscriptionBySession(sessionID string, buyerID uint) (*models.Subscription, error) {
	for _, sub := range f.subscriptions {
		if sub.StripeSubscriptionID == sessionID && sub.BuyerID == buyerID {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepository) GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error) {
	for _, sub := range f.subscriptions {
		if sub.StripeSubscriptionID == providerSubscriptionID {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if stored, ok := f.webhookEvents[key]; ok {
		return false, stored, nil
	}
	event.ID = f.nextID
	f.nextID++
	f.webhookEvents[key] = event
	return true, event, nil
}

func (f *fakePaymentRepository) MarkWebhookProcessed(id uint, processingError string) error {
	for _, event := range f.webhookEvents {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func newCheckoutGatewayServer(t *testing.T) (*httptest.Server, *StripeClient) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.test/c/cs_test_1"}`))
	}))
	client := &StripeClient{
		SecretKey:  "sk_test_123",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}
	return server, client
}

func subscriptionEvent(eventType, subscriptionID, status string, created int64) *Event {
	object, _ := json.Marshal(SubscriptionObject{ID: subscriptionID, Status: status})
	event := &Event{
		ID:      fmt.Sprintf("evt_%s_%d", status, created),
		Type:    eventType,
		Created: created,
	}
	event.Data.Object = object
	return event
}

func checkoutCompletedEvent(sessionID, subscriptionID, automationUUID string, buyerID uint, created int64) *Event {
	object, _ := json.Marshal(CheckoutSessionObject{
		ID:           sessionID,
		Subscription: subscriptionID,
		Metadata: map[string]string{
			"automationId": automationUUID,
			"buyerId":      fmt.Sprintf("%d", buyerID),
		},
	})
	event := &Event{
		ID:      "evt_checkout_" + sessionID,
		Type:    EventCheckoutSessionCompleted,
		Created: created,
	}
	event.Data.Object = object
	return event
}

func TestInitiateCheckoutCreatesIncompleteRow(t *testing.T) {
	repo := newFakePaymentRepository()
	repo.addAutomation("auto-1", 10)
	server, gateway := newCheckoutGatewayServer(t)
	defer server.Close()

	service := NewService(repo, gateway)
	url, err := service.InitiateCheckout(context.Background(), CheckoutInput{
		AutomationUUID: "auto-1",
		Title:          "Invoice Bot",
		PriceMonthly:   49,
		SetupFee:       99,
		BaseURL:        "https://flowmarkt.test",
		BuyerID:        7,
		BuyerEmail:     "buyer@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/c/cs_test_1", url)

	require.Len(t, repo.subscriptions, 1)
	sub := repo.subscriptions[0]
	assert.Equal(t, models.SubscriptionStatusIncomplete, sub.Status)
	assert.Equal(t, "cs_test_1", sub.StripeSubscriptionID)
	assert.Equal(t, uint(10), sub.AutomationID)
	assert.Equal(t, float64(49), sub.MonthlyPrice)

	// Installs count only after the gateway confirms payment.
	assert.Zero(t, repo.installCounts[10])
}

func TestInitiateCheckoutAnonymousBuyer(t *testing.T) {
	repo := newFakePaymentRepository()
	repo.addAutomation("auto-1", 10)
	server, gateway := newCheckoutGatewayServer(t)
	defer server.Close()

	service := NewService(repo, gateway)
	url, err := service.InitiateCheckout(context.Background(), CheckoutInput{
		AutomationUUID: "auto-1",
		Title:          "Invoice Bot",
		PriceMonthly:   49,
		BaseURL:        "https://flowmarkt.test",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Empty(t, repo.subscriptions)
}

func TestInitiateCheckoutUnknownAutomation(t *testing.T) {
	repo := newFakePaymentRepository()
	server, gateway := newCheckoutGatewayServer(t)
	defer server.Close()

	service := NewService(repo, gateway)
	_, err := service.InitiateCheckout(context.Background(), CheckoutInput{
		AutomationUUID: "missing",
		Title:          "Invoice Bot",
		PriceMonthly:   49,
		BaseURL:        "https://flowmarkt.test",
	})

	require.ErrorIs(t, err, ErrAutomationNotFound)
}

func TestInitiateCheckoutReusesOpenRow(t *testing.T) {
	repo := newFakePaymentRepository()
	repo.addAutomation("auto-1", 10)
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusIncomplete,
		StripeSubscriptionID: "cs_old",
	}))

	server, gateway := newCheckoutGatewayServer(t)
	defer server.Close()

	service := NewService(repo, gateway)
	_, err := service.InitiateCheckout(context.Background(), CheckoutInput{
		AutomationUUID: "auto-1",
		Title:          "Invoice Bot",
		PriceMonthly:   59,
		BaseURL:        "https://flowmarkt.test",
		BuyerID:        7,
	})

	require.NoError(t, err)
	require.Len(t, repo.subscriptions, 1)
	assert.Equal(t, "cs_test_1", repo.subscriptions[0].StripeSubscriptionID)
	assert.Equal(t, float64(59), repo.subscriptions[0].MonthlyPrice)
}

func TestReconcileCheckoutCompletedPromotesAndCountsInstall(t *testing.T) {
	repo := newFakePaymentRepository()
	repo.addAutomation("auto-1", 10)
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusIncomplete,
		StripeSubscriptionID: "cs_test_1",
	}))

	service := NewService(repo, nil)
	event := checkoutCompletedEvent("cs_test_1", "sub_durable", "auto-1", 7, time.Now().Unix())
	require.NoError(t, service.ReconcileEvent(context.Background(), event))

	sub := repo.subscriptions[0]
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "sub_durable", sub.StripeSubscriptionID)
	require.NotNil(t, sub.LastEventAt)
	assert.Equal(t, 1, repo.installCounts[10])
}

func TestReconcileCheckoutCompletedReplayCountsOnce(t *testing.T) {
	repo := newFakePaymentRepository()
	repo.addAutomation("auto-1", 10)
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusIncomplete,
		StripeSubscriptionID: "cs_test_1",
	}))

	service := NewService(repo, nil)
	created := time.Now().Unix()

	// First delivery promotes, rebinds the row to the durable id, and counts
	// the install. The replay misses the session lookup and is a no-op.
	first := checkoutCompletedEvent("cs_test_1", "sub_durable", "auto-1", 7, created)
	require.NoError(t, service.ReconcileEvent(context.Background(), first))
	replay := checkoutCompletedEvent("cs_test_1", "sub_durable", "auto-1", 7, created)
	require.NoError(t, service.ReconcileEvent(context.Background(), replay))

	assert.Equal(t, 1, repo.installCounts[10])
	assert.Equal(t, models.SubscriptionStatusActive, repo.subscriptions[0].Status)
}

func TestReconcileCheckoutCompletedMissingMetadata(t *testing.T) {
	repo := newFakePaymentRepository()
	service := NewService(repo, nil)

	object, _ := json.Marshal(CheckoutSessionObject{ID: "cs_test_1", Subscription: "sub_x"})
	event := &Event{ID: "evt_1", Type: EventCheckoutSessionCompleted, Created: time.Now().Unix()}
	event.Data.Object = object

	require.NoError(t, service.ReconcileEvent(context.Background(), event))
	assert.Empty(t, repo.subscriptions)
}

func TestReconcileSubscriptionUpdatedPastDueStaysActive(t *testing.T) {
	repo := newFakePaymentRepository()
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_durable",
	}))

	service := NewService(repo, nil)
	event := subscriptionEvent(EventSubscriptionUpdated, "sub_durable", "past_due", time.Now().Unix())
	require.NoError(t, service.ReconcileEvent(context.Background(), event))

	assert.Equal(t, models.SubscriptionStatusActive, repo.subscriptions[0].Status)
}

func TestReconcileSubscriptionDeletedCancels(t *testing.T) {
	repo := newFakePaymentRepository()
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_durable",
	}))

	service := NewService(repo, nil)
	event := subscriptionEvent(EventSubscriptionDeleted, "sub_durable", "canceled", time.Now().Unix())
	require.NoError(t, service.ReconcileEvent(context.Background(), event))

	assert.Equal(t, models.SubscriptionStatusCanceled, repo.subscriptions[0].Status)
}

func TestReconcileOutOfOrderDeleteThenStaleUpdate(t *testing.T) {
	repo := newFakePaymentRepository()
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_durable",
	}))

	service := NewService(repo, nil)
	now := time.Now().Unix()

	deletion := subscriptionEvent(EventSubscriptionDeleted, "sub_durable", "canceled", now)
	require.NoError(t, service.ReconcileEvent(context.Background(), deletion))
	assert.Equal(t, models.SubscriptionStatusCanceled, repo.subscriptions[0].Status)

	// An update that happened before the deletion arrives late; it must not
	// resurrect the canceled subscription.
	staleUpdate := subscriptionEvent(EventSubscriptionUpdated, "sub_durable", "active", now-60)
	require.NoError(t, service.ReconcileEvent(context.Background(), staleUpdate))
	assert.Equal(t, models.SubscriptionStatusCanceled, repo.subscriptions[0].Status)
}

func TestReconcileStaleCheckoutCompletedDoesNotResurrect(t *testing.T) {
	repo := newFakePaymentRepository()
	repo.addAutomation("auto-1", 10)
	now := time.Now()
	canceledAt := now
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusCanceled,
		StripeSubscriptionID: "cs_test_1",
		LastEventAt:          &canceledAt,
	}))

	service := NewService(repo, nil)

	// A completion that happened before the cancellation arrives late; it
	// must neither reactivate the row nor count an install.
	stale := checkoutCompletedEvent("cs_test_1", "sub_durable", "auto-1", 7, now.Add(-time.Minute).Unix())
	require.NoError(t, service.ReconcileEvent(context.Background(), stale))

	assert.Equal(t, models.SubscriptionStatusCanceled, repo.subscriptions[0].Status)
	assert.Equal(t, "cs_test_1", repo.subscriptions[0].StripeSubscriptionID)
	assert.Zero(t, repo.installCounts[10])
}

func TestRedeliveryAfterFailedReconcileConverges(t *testing.T) {
	repo := newFakePaymentRepository()
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_durable",
	}))

	service := NewService(repo, nil)
	event := subscriptionEvent(EventSubscriptionDeleted, "sub_durable", "canceled", time.Now().Unix())
	input := WebhookEventInput{
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     `{"id":"` + event.ID + `"}`,
		SignatureValid:  true,
	}

	// First delivery records the event but the store fails mid-reconcile.
	created, stored, err := service.RecordWebhookEvent(context.Background(), input)
	require.NoError(t, err)
	require.True(t, created)
	repo.saveErr = fmt.Errorf("db gone away")
	reconcileErr := service.ReconcileEvent(context.Background(), event)
	require.Error(t, reconcileErr)
	require.NoError(t, service.MarkWebhookProcessed(context.Background(), stored.ID, reconcileErr))

	// The provider retries the same event id. The ledger row exists, but a
	// failed delivery must be re-processed rather than acked as a duplicate.
	repo.saveErr = nil
	created, stored, err = service.RecordWebhookEvent(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, created)
	require.True(t, stored.NeedsProcessing())

	require.NoError(t, service.ReconcileEvent(context.Background(), event))
	require.NoError(t, service.MarkWebhookProcessed(context.Background(), stored.ID, nil))
	assert.Equal(t, models.SubscriptionStatusCanceled, repo.subscriptions[0].Status)

	// A further replay of the now-successful delivery is a true duplicate.
	created, stored, err = service.RecordWebhookEvent(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, stored.NeedsProcessing())
}

func TestReconcileUnknownEventTypeIsNoOp(t *testing.T) {
	repo := newFakePaymentRepository()
	service := NewService(repo, nil)

	event := &Event{ID: "evt_1", Type: "invoice.payment_succeeded", Created: time.Now().Unix()}
	event.Data.Object = json.RawMessage(`{"id":"in_123"}`)

	require.NoError(t, service.ReconcileEvent(context.Background(), event))
}

func TestReconcileUnknownSubscriptionIsNoOp(t *testing.T) {
	repo := newFakePaymentRepository()
	service := NewService(repo, nil)

	event := subscriptionEvent(EventSubscriptionUpdated, "sub_missing", "active", time.Now().Unix())
	require.NoError(t, service.ReconcileEvent(context.Background(), event))
}

func TestReconcileStoreFailureSurfacesError(t *testing.T) {
	repo := newFakePaymentRepository()
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_durable",
	}))
	repo.saveErr = fmt.Errorf("db gone away")

	service := NewService(repo, nil)
	event := subscriptionEvent(EventSubscriptionUpdated, "sub_durable", "active", time.Now().Unix())
	require.Error(t, service.ReconcileEvent(context.Background(), event))
}

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	repo := newFakePaymentRepository()
	service := NewService(repo, nil)

	created, first, err := service.RecordWebhookEvent(context.Background(), WebhookEventInput{
		ProviderEventID: "evt_1",
		EventType:       EventSubscriptionUpdated,
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	})
	require.NoError(t, err)
	assert.True(t, created)

	createdAgain, second, err := service.RecordWebhookEvent(context.Background(), WebhookEventInput{
		ProviderEventID: "evt_1",
		EventType:       EventSubscriptionUpdated,
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	})
	require.NoError(t, err)
	assert.False(t, createdAgain)
	assert.Equal(t, first.ID, second.ID)
}

func TestCancelSubscriptionIdempotent(t *testing.T) {
	repo := newFakePaymentRepository()
	sub := &models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_durable",
	}
	require.NoError(t, repo.CreateSubscription(sub))

	service := NewService(repo, nil)
	require.NoError(t, service.CancelSubscription(context.Background(), sub))
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)

	// Second cancel is a no-op.
	require.NoError(t, service.CancelSubscription(context.Background(), sub))
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
}

func TestCancelSubscriptionCallsGatewayForDurableID(t *testing.T) {
	var cancelCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			cancelCalls++
		}
		w.Write([]byte(`{"id":"sub_durable","status":"canceled"}`))
	}))
	defer server.Close()

	gateway := &StripeClient{
		SecretKey:  "sk_test_123",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}

	repo := newFakePaymentRepository()
	sub := &models.Subscription{
		AutomationID:         10,
		BuyerID:              7,
		Status:               models.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_durable",
	}
	require.NoError(t, repo.CreateSubscription(sub))

	service := NewService(repo, gateway)
	require.NoError(t, service.CancelSubscription(context.Background(), sub))
	assert.Equal(t, 1, cancelCalls)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
}
