package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Review is a buyer rating plus free-text comment. One review per
// (automation, user) pair, enforced by the composite unique index; inserting
// a second one surfaces as a duplicate-key error.
type Review struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	AutomationID uint        `gorm:"not null;index:ux_reviews_automation_user,unique,priority:1" json:"automation_id"`
	Automation   *Automation `gorm:"foreignKey:AutomationID" json:"automation,omitempty"`
	UserID       uint        `gorm:"not null;index:ux_reviews_automation_user,unique,priority:2" json:"user_id"`
	User         *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Rating       int         `gorm:"not null" json:"rating" validate:"required,min=1,max=5"`
	Comment      string      `gorm:"type:text" json:"comment" validate:"max=2000"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Review) Validate() error {
	v := validator.New()

	return v.Struct(r)
}
