package models

import "time"

type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name" validate:"required,min=2,max=100"`
	Slug      string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"slug"`
	Icon      string    `gorm:"type:varchar(100);default:''" json:"icon"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
