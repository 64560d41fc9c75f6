package repository

import (
	"strings"

	"github.com/flowmarkt/flowmarkt/app/models"
	"gorm.io/gorm"
)

// automationRepository implements the AutomationRepository interface
type automationRepository struct {
	db *gorm.DB
}

// NewAutomationRepository creates a new automation repository instance
func NewAutomationRepository(db *gorm.DB) AutomationRepository {
	return &automationRepository{db: db}
}

func (r *automationRepository) Create(automation *models.Automation) error {
	return r.db.Create(automation).Error
}

func (r *automationRepository) GetByID(id uint) (*models.Automation, error) {
	var automation models.Automation
	err := r.db.Preload("Category").Preload("Creator").First(&automation, id).Error
	if err != nil {
		return nil, err
	}
	return &automation, nil
}

func (r *automationRepository) GetByUUID(uuid string) (*models.Automation, error) {
	var automation models.Automation
	err := r.db.Where("uuid = ?", uuid).First(&automation).Error
	if err != nil {
		return nil, err
	}
	return &automation, nil
}

func (r *automationRepository) GetBySlug(slug string) (*models.Automation, error) {
	var automation models.Automation
	err := r.db.Preload("Category").Preload("Creator").Where("slug = ?", slug).First(&automation).Error
	if err != nil {
		return nil, err
	}
	return &automation, nil
}

func (r *automationRepository) GetByCreatorID(creatorID uint) ([]models.Automation, error) {
	var automations []models.Automation
	err := r.db.Preload("Category").
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&automations).Error
	return automations, err
}

// ListApproved returns the public catalog slice matching the filter plus the
// total match count for pagination.
func (r *automationRepository) ListApproved(filter AutomationFilter) ([]models.Automation, int64, error) {
	query := r.db.Model(&models.Automation{}).Where("is_approved = ?", true)

	if filter.CategorySlug != "" {
		query = query.Joins("JOIN categories ON categories.id = automations.category_id").
			Where("categories.slug = ?", filter.CategorySlug)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where("automations.title LIKE ? OR automations.short_description LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch filter.Sort {
	case "rating":
		query = query.Order("automations.avg_rating DESC")
	case "newest":
		query = query.Order("automations.created_at DESC")
	case "price":
		query = query.Order("automations.price_monthly ASC")
	default: // popular
		query = query.Order("automations.install_count DESC")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 24
	}

	var automations []models.Automation
	err := query.Preload("Category").Preload("Creator").
		Offset(filter.Offset).Limit(limit).
		Find(&automations).Error
	return automations, total, err
}

func (r *automationRepository) ListAll(offset, limit int) ([]models.Automation, error) {
	var automations []models.Automation
	err := r.db.Preload("Category").Preload("Creator").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&automations).Error
	return automations, err
}

func (r *automationRepository) Update(automation *models.Automation) error {
	return r.db.Save(automation).Error
}

func (r *automationRepository) Delete(id uint) error {
	return r.db.Delete(&models.Automation{}, id).Error
}

func (r *automationRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Automation{}).Count(&count).Error
	return count, err
}

func (r *automationRepository) CountPending() (int64, error) {
	var count int64
	err := r.db.Model(&models.Automation{}).Where("is_approved = ?", false).Count(&count).Error
	return count, err
}

func (r *automationRepository) SetApproved(id uint) error {
	return r.db.Model(&models.Automation{}).Where("id = ?", id).
		UpdateColumn("is_approved", true).Error
}

// IncrementInstallCount applies a single atomic increment; the counter never
// decreases outside row deletion.
func (r *automationRepository) IncrementInstallCount(id uint) error {
	return r.db.Model(&models.Automation{}).Where("id = ?", id).
		UpdateColumn("install_count", gorm.Expr("install_count + ?", 1)).Error
}
