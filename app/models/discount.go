package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	DiscountTypePercentage  = "percentage"
	DiscountTypeFlat        = "flat"
	DiscountTypeFlatPerSeat = "flat_per_seat"
)

// Discount mirrors a Paddle discount. Percentage discounts use Rate; flat
// discounts use Amount and CurrencyCode. The other side is always null.
type Discount struct {
	ID                        uint           `gorm:"primaryKey" json:"id"`
	DiscountID                string         `gorm:"type:varchar(40);not null;uniqueIndex" json:"discount_id"`
	PaddleID                  string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"paddle_id"`
	Description               string         `gorm:"type:varchar(500);default:''" json:"description"`
	DiscountType              string         `gorm:"type:varchar(20);not null" json:"discount_type"`
	Rate                      *string        `gorm:"type:varchar(16)" json:"rate"`
	Amount                    *string        `gorm:"type:varchar(32)" json:"amount"`
	CurrencyCode              *string        `gorm:"type:varchar(3)" json:"currency_code"`
	Code                      *string        `gorm:"type:varchar(64);index" json:"code"`
	EnabledForCheckout        bool           `gorm:"default:false" json:"enabled_for_checkout"`
	Recur                     bool           `gorm:"default:false" json:"recur"`
	MaximumRecurringIntervals *int           `json:"maximum_recurring_intervals"`
	UsageLimit                *int           `json:"usage_limit"`
	TimesUsed                 int            `gorm:"default:0" json:"times_used"`
	ExpiresAt                 *time.Time     `gorm:"type:timestamp;default:null" json:"expires_at"`
	Status                    string         `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CustomData                datatypes.JSON `json:"custom_data"`
	PaddleCreatedAt           *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_created_at,omitempty"`
	PaddleUpdatedAt           *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_updated_at,omitempty"`
	CreatedAt                 time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
