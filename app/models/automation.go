package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Automation is a sellable workflow template offering in the marketplace
// catalog. Listings start unapproved and become publicly visible only after
// an admin approval.
type Automation struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UUID             string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	Title            string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200"`
	Slug             string         `gorm:"type:varchar(220);uniqueIndex;not null" json:"slug"`
	ShortDescription string         `gorm:"type:varchar(500)" json:"short_description" validate:"max=500"`
	LongDescription  string         `gorm:"type:text" json:"long_description"`
	CategoryID       *uint          `gorm:"index" json:"category_id,omitempty"`
	Category         *Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	CreatorID        uint           `gorm:"not null;index" json:"creator_id"`
	Creator          *User          `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	PriceMonthly     float64        `gorm:"type:decimal(10,2);not null;default:0" json:"price_monthly" validate:"gte=0"`
	SetupFee         float64        `gorm:"type:decimal(10,2);not null;default:0" json:"setup_fee" validate:"gte=0"`
	ThumbnailURL     *string        `gorm:"type:varchar(255);default:null" json:"thumbnail_url,omitempty"`
	Platform         string         `gorm:"type:varchar(100);default:''" json:"platform"`
	Tags             string         `gorm:"type:varchar(500);default:''" json:"tags"`
	IsApproved       bool           `gorm:"default:false;index" json:"is_approved"`
	InstallCount     uint           `gorm:"not null;default:0" json:"install_count"`
	AvgRating        float64        `gorm:"type:decimal(3,2);not null;default:0" json:"avg_rating"`
	CreatedAt        time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Automation) Validate() error {
	v := validator.New()

	return v.Struct(a)
}
