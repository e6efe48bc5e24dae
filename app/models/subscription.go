package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SubscriptionItemActive   = "active"
	SubscriptionItemInactive = "inactive"
)

// Subscription mirrors a Paddle subscription. New rows must be linked to a
// plan Item through the GLT code on the primary price.
type Subscription struct {
	ID                         uint           `gorm:"primaryKey" json:"id"`
	SubscriptionID             string         `gorm:"type:varchar(40);not null;uniqueIndex" json:"subscription_id"`
	PaddleID                   string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"paddle_id"`
	PlanItemID                 *uint          `gorm:"index" json:"plan_item_id,omitempty"`
	GLT                        *string        `gorm:"column:glt;type:varchar(32)" json:"glt,omitempty"`
	CustomerPaddleID           string         `gorm:"type:varchar(64);not null;default:'';index" json:"customer_paddle_id"`
	CustomerRefID              *uint          `gorm:"index" json:"customer_ref_id,omitempty"`
	Status                     string         `gorm:"type:varchar(20);not null;index" json:"status"`
	CurrencyCode               string         `gorm:"type:varchar(3);default:''" json:"currency_code"`
	CollectionMode             string         `gorm:"type:varchar(20);default:'automatic'" json:"collection_mode"`
	BillingCycleInterval       string         `gorm:"type:varchar(10);default:''" json:"billing_cycle_interval"`
	BillingCycleFrequency      int            `gorm:"default:0" json:"billing_cycle_frequency"`
	StartedAt                  *time.Time     `gorm:"type:timestamp;default:null" json:"started_at"`
	FirstBilledAt              *time.Time     `gorm:"type:timestamp;default:null" json:"first_billed_at"`
	NextBilledAt               *time.Time     `gorm:"type:timestamp;default:null" json:"next_billed_at"`
	PausedAt                   *time.Time     `gorm:"type:timestamp;default:null" json:"paused_at"`
	CanceledAt                 *time.Time     `gorm:"type:timestamp;default:null" json:"canceled_at"`
	CurrentPeriodStartsAt      *time.Time     `gorm:"type:timestamp;default:null" json:"current_period_starts_at"`
	CurrentPeriodEndsAt        *time.Time     `gorm:"type:timestamp;default:null" json:"current_period_ends_at"`
	ScheduledChangeAction      *string        `gorm:"type:varchar(20)" json:"scheduled_change_action"`
	ScheduledChangeEffectiveAt *time.Time     `gorm:"type:timestamp;default:null" json:"scheduled_change_effective_at"`
	CustomData                 datatypes.JSON `json:"custom_data"`
	PaddleCreatedAt            *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_created_at,omitempty"`
	PaddleUpdatedAt            *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_updated_at,omitempty"`
	CreatedAt                  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// SubscriptionItem mirrors one line item of a Paddle subscription. Items
// dropped from a later webhook are marked inactive, never deleted.
type SubscriptionItem struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	SubscriptionRefID  uint       `gorm:"not null;index:ux_subscription_items_sub_line,unique,priority:1" json:"subscription_ref_id"`
	LineItemID         string     `gorm:"type:varchar(64);not null;index:ux_subscription_items_sub_line,unique,priority:2" json:"line_item_id"`
	PriceRefID         uint       `gorm:"not null;index" json:"price_ref_id"`
	PricePaddleID      string     `gorm:"type:varchar(64);not null" json:"price_paddle_id"`
	Quantity           int        `gorm:"not null;default:1" json:"quantity"`
	Recurring          bool       `gorm:"default:true" json:"recurring"`
	PaddleStatus       string     `gorm:"type:varchar(20);default:''" json:"paddle_status"`
	Status             string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	NextBilledAt       *time.Time `gorm:"type:timestamp;default:null" json:"next_billed_at"`
	PreviouslyBilledAt *time.Time `gorm:"type:timestamp;default:null" json:"previously_billed_at"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
