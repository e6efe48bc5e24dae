package models

import "time"

const ItemTypeSubscriptionPlan = "subscription_plan"

// Item is a catalog entry of the tenant. Subscription plans carry a GLT
// (group/level/tier) code that Paddle prices reference in their custom data.
type Item struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ItemID      string    `gorm:"type:varchar(40);not null;uniqueIndex" json:"item_id"`
	Name        string    `gorm:"type:varchar(200);not null" json:"name"`
	ItemType    string    `gorm:"type:varchar(32);not null;default:'subscription_plan';index" json:"item_type"`
	GLT         *string   `gorm:"column:glt;type:varchar(32);uniqueIndex" json:"glt,omitempty"`
	GroupNumber int       `gorm:"default:0" json:"group_number"`
	LevelNumber int       `gorm:"default:0" json:"level_number"`
	TierNumber  int       `gorm:"default:0" json:"tier_number"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
