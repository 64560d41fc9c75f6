package payment

import (
	"time"

	"github.com/flowmarkt/flowmarkt/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the payment service.
type Repository interface {
	GetAutomationByUUID(uuid string) (*models.Automation, error)
	IncrementInstallCount(automationID uint) error
	FindOpenSubscription(buyerID, automationID uint) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	SaveSubscription(sub *models.Subscription) error
	GetSubscriptionBySession(sessionID string, buyerID uint) (*models.Subscription, error)
	GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error)
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetAutomationByUUID(uuid string) (*models.Automation, error) {
	var automation models.Automation
	err := r.db.Where("uuid = ?", uuid).First(&automation).Error
	if err != nil {
		return nil, err
	}
	return &automation, nil
}

func (r *gormRepository) IncrementInstallCount(automationID uint) error {
	return r.db.Model(&models.Automation{}).Where("id = ?", automationID).
		UpdateColumn("install_count", gorm.Expr("install_count + ?", 1)).Error
}

// FindOpenSubscription returns the newest non-canceled subscription for the
// (buyer, automation) pair, if any.
func (r *gormRepository) FindOpenSubscription(buyerID, automationID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.
		Where("buyer_id = ? AND automation_id = ? AND status <> ?",
			buyerID, automationID, models.SubscriptionStatusCanceled).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) GetSubscriptionBySession(sessionID string, buyerID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("stripe_subscription_id = ? AND buyer_id = ?", sessionID, buyerID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("stripe_subscription_id = ?", providerSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
