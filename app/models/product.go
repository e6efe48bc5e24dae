package models

import (
	"time"

	"gorm.io/datatypes"
)

// Product mirrors a Paddle product.
type Product struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ProductID       string         `gorm:"type:varchar(40);not null;uniqueIndex" json:"product_id"`
	PaddleID        string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"paddle_id"`
	Name            string         `gorm:"type:varchar(200);not null;default:''" json:"name"`
	Description     *string        `gorm:"type:text" json:"description"`
	Type            string         `gorm:"type:varchar(20);default:'standard'" json:"type"`
	TaxCategory     string         `gorm:"type:varchar(40);default:''" json:"tax_category"`
	ImageURL        *string        `gorm:"type:varchar(500)" json:"image_url"`
	Status          string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CustomData      datatypes.JSON `json:"custom_data"`
	PaddleCreatedAt *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_created_at,omitempty"`
	PaddleUpdatedAt *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_updated_at,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
