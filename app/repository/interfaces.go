package repository

import (
	"github.com/flowmarkt/flowmarkt/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// CategoryRepository defines the interface for category operations
type CategoryRepository interface {
	Create(category *models.Category) error
	GetAll() ([]models.Category, error)
	GetBySlug(slug string) (*models.Category, error)
}

// AutomationFilter narrows public catalog listings.
type AutomationFilter struct {
	CategorySlug string
	Query        string
	Sort         string // popular | rating | newest | price
	Offset       int
	Limit        int
}

// AutomationRepository defines the interface for catalog operations
type AutomationRepository interface {
	Create(automation *models.Automation) error
	GetByID(id uint) (*models.Automation, error)
	GetByUUID(uuid string) (*models.Automation, error)
	GetBySlug(slug string) (*models.Automation, error)
	GetByCreatorID(creatorID uint) ([]models.Automation, error)
	ListApproved(filter AutomationFilter) ([]models.Automation, int64, error)
	ListAll(offset, limit int) ([]models.Automation, error)
	Update(automation *models.Automation) error
	Delete(id uint) error
	Count() (int64, error)
	CountPending() (int64, error)
	SetApproved(id uint) error
	IncrementInstallCount(id uint) error
}

// ReviewRepository defines the interface for review operations
type ReviewRepository interface {
	Create(review *models.Review) error
	GetByAutomationID(automationID uint, offset, limit int) ([]models.Review, error)
	CountByAutomationID(automationID uint) (int64, error)
	RecalculateAverageRating(automationID uint) (float64, error)
}

// SubscriptionRepository defines the interface for local subscription records
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByBuyerID(buyerID uint) ([]models.Subscription, error)
	Save(sub *models.Subscription) error
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Category     CategoryRepository
	Automation   AutomationRepository
	Review       ReviewRepository
	Subscription SubscriptionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Category:     NewCategoryRepository(db),
		Automation:   NewAutomationRepository(db),
		Review:       NewReviewRepository(db),
		Subscription: NewSubscriptionRepository(db),
	}
}
