package models

import (
	"time"

	"gorm.io/datatypes"
)

// Customer mirrors a Paddle customer and links it to a platform user.
type Customer struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CustomerID       string         `gorm:"type:varchar(40);not null;uniqueIndex" json:"customer_id"`
	PaddleID         string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"paddle_id"`
	UserID           *uint          `gorm:"index" json:"user_id,omitempty"`
	Email            string         `gorm:"type:varchar(200);not null;default:'';index" json:"email"`
	FullName         *string        `gorm:"type:varchar(200)" json:"full_name"`
	FirstName        string         `gorm:"type:varchar(100);default:''" json:"first_name"`
	LastName         string         `gorm:"type:varchar(100);default:''" json:"last_name"`
	Locale           string         `gorm:"type:varchar(10);default:''" json:"locale"`
	MarketingConsent bool           `gorm:"default:false" json:"marketing_consent"`
	Status           string         `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CustomData       datatypes.JSON `json:"custom_data"`
	PaddleCreatedAt  *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_created_at,omitempty"`
	PaddleUpdatedAt  *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_updated_at,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
