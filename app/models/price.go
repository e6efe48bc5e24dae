package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PriceTypeRecurring = "recurring"
	PriceTypeOneTime   = "one_time"
)

// Price mirrors a Paddle price. Every price belongs to a locally known Product.
type Price struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	PriceID               string         `gorm:"type:varchar(40);not null;uniqueIndex" json:"price_id"`
	PaddleID              string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"paddle_id"`
	ProductRefID          uint           `gorm:"not null;index" json:"product_ref_id"`
	ProductPaddleID       string         `gorm:"type:varchar(64);not null;index" json:"product_paddle_id"`
	Name                  *string        `gorm:"type:varchar(200)" json:"name"`
	Description           string         `gorm:"type:varchar(500);default:''" json:"description"`
	PriceType             string         `gorm:"type:varchar(16);not null;default:'one_time'" json:"price_type"`
	BillingCycleInterval  *string        `gorm:"type:varchar(10)" json:"billing_cycle_interval"`
	BillingCycleFrequency *int           `json:"billing_cycle_frequency"`
	TrialPeriodInterval   *string        `gorm:"type:varchar(10)" json:"trial_period_interval"`
	TrialPeriodFrequency  *int           `json:"trial_period_frequency"`
	TaxMode               string         `gorm:"type:varchar(20);default:'account_setting'" json:"tax_mode"`
	UnitPriceAmount       string         `gorm:"type:varchar(32);default:'0'" json:"unit_price_amount"`
	UnitPriceCurrency     string         `gorm:"type:varchar(3);default:''" json:"unit_price_currency"`
	QuantityMinimum       int            `gorm:"default:1" json:"quantity_minimum"`
	QuantityMaximum       int            `gorm:"default:100" json:"quantity_maximum"`
	Status                string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CustomData            datatypes.JSON `json:"custom_data"`
	PaddleCreatedAt       *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_created_at,omitempty"`
	PaddleUpdatedAt       *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_updated_at,omitempty"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
