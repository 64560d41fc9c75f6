package repository

import (
	"github.com/flowmarkt/flowmarkt/app/models"
	"gorm.io/gorm"
)

// reviewRepository implements the ReviewRepository interface
type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new review repository instance
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Create inserts a review. A second review by the same user on the same
// automation violates the composite unique index and surfaces as
// gorm.ErrDuplicatedKey.
func (r *reviewRepository) Create(review *models.Review) error {
	return r.db.Create(review).Error
}

func (r *reviewRepository) GetByAutomationID(automationID uint, offset, limit int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var reviews []models.Review
	err := r.db.Preload("User").
		Where("automation_id = ?", automationID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&reviews).Error
	return reviews, err
}

func (r *reviewRepository) CountByAutomationID(automationID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Review{}).Where("automation_id = ?", automationID).Count(&count).Error
	return count, err
}

// RecalculateAverageRating recomputes the mean rating from all reviews of the
// automation and writes it back to the catalog row.
func (r *reviewRepository) RecalculateAverageRating(automationID uint) (float64, error) {
	var avg float64
	err := r.db.Model(&models.Review{}).
		Where("automation_id = ?", automationID).
		Select("COALESCE(AVG(rating), 0)").
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}

	err = r.db.Model(&models.Automation{}).Where("id = ?", automationID).
		UpdateColumn("avg_rating", avg).Error
	return avg, err
}
