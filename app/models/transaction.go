package models

import (
	"time"

	"gorm.io/datatypes"
)

const FailedTransactionStatusLogged = "Logged"

// Transaction mirrors a Paddle transaction. Money values are kept as the
// decimal strings Paddle sends (lowest currency unit).
type Transaction struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	TransactionID        string         `gorm:"type:varchar(40);not null;uniqueIndex" json:"transaction_id"`
	PaddleID             string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"paddle_id"`
	Status               string         `gorm:"type:varchar(20);not null;index" json:"status"`
	CustomerPaddleID     *string        `gorm:"type:varchar(64);index" json:"customer_paddle_id"`
	CustomerRefID        *uint          `gorm:"index" json:"customer_ref_id,omitempty"`
	SubscriptionPaddleID *string        `gorm:"type:varchar(64);index" json:"subscription_paddle_id"`
	InvoiceID            *string        `gorm:"type:varchar(64)" json:"invoice_id"`
	InvoiceNumber        *string        `gorm:"type:varchar(64)" json:"invoice_number"`
	DiscountPaddleID     *string        `gorm:"type:varchar(64)" json:"discount_paddle_id"`
	Origin               string         `gorm:"type:varchar(32);default:''" json:"origin"`
	CollectionMode       string         `gorm:"type:varchar(20);default:'automatic'" json:"collection_mode"`
	CurrencyCode         string         `gorm:"type:varchar(3);default:''" json:"currency_code"`
	Subtotal             string         `gorm:"type:varchar(32);default:'0'" json:"subtotal"`
	DiscountTotal        string         `gorm:"type:varchar(32);default:'0'" json:"discount_total"`
	TaxTotal             string         `gorm:"type:varchar(32);default:'0'" json:"tax_total"`
	Total                string         `gorm:"type:varchar(32);default:'0'" json:"total"`
	GrandTotal           string         `gorm:"type:varchar(32);default:'0'" json:"grand_total"`
	Fee                  *string        `gorm:"type:varchar(32)" json:"fee"`
	Earnings             *string        `gorm:"type:varchar(32)" json:"earnings"`
	BilledAt             *time.Time     `gorm:"type:timestamp;default:null" json:"billed_at"`
	CustomData           datatypes.JSON `json:"custom_data"`
	PaddleCreatedAt      *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_created_at,omitempty"`
	PaddleUpdatedAt      *time.Time     `gorm:"type:timestamp;default:null" json:"paddle_updated_at,omitempty"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TransactionItem is one line item of a Transaction.
type TransactionItem struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	TransactionRefID uint      `gorm:"not null;index:ux_transaction_items_tx_line,unique,priority:1" json:"transaction_ref_id"`
	LineItemID       string    `gorm:"type:varchar(64);not null;index:ux_transaction_items_tx_line,unique,priority:2" json:"line_item_id"`
	PricePaddleID    string    `gorm:"type:varchar(64);not null;default:''" json:"price_paddle_id"`
	PriceRefID       *uint     `gorm:"index" json:"price_ref_id,omitempty"`
	ProductPaddleID  string    `gorm:"type:varchar(64);default:''" json:"product_paddle_id"`
	ProductName      string    `gorm:"type:varchar(200);default:''" json:"product_name"`
	Quantity         int       `gorm:"not null;default:1" json:"quantity"`
	Subtotal         string    `gorm:"type:varchar(32);default:'0'" json:"subtotal"`
	TaxTotal         string    `gorm:"type:varchar(32);default:'0'" json:"tax_total"`
	Total            string    `gorm:"type:varchar(32);default:'0'" json:"total"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FailedTransaction is a denormalized review record for a transaction whose
// payment failed. It copies customer identity so reviewers need no joins.
type FailedTransaction struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	FailedTransactionID string     `gorm:"type:varchar(40);not null;uniqueIndex" json:"failed_transaction_id"`
	TransactionRefID    uint       `gorm:"not null;uniqueIndex" json:"transaction_ref_id"`
	TransactionPaddleID string     `gorm:"type:varchar(64);not null;index" json:"transaction_paddle_id"`
	CustomerPaddleID    string     `gorm:"type:varchar(64);default:''" json:"customer_paddle_id"`
	CustomerEmail       string     `gorm:"type:varchar(200);default:''" json:"customer_email"`
	CustomerName        string     `gorm:"type:varchar(200);default:''" json:"customer_name"`
	TransactionStatus   string     `gorm:"type:varchar(20);not null" json:"transaction_status"`
	Status              string     `gorm:"type:varchar(20);not null;default:'Logged';index" json:"status"`
	FailureReason       string     `gorm:"type:varchar(500);default:''" json:"failure_reason"`
	ItemsSummary        string     `gorm:"type:text" json:"items_summary"`
	Amount              string     `gorm:"type:varchar(32);default:'0'" json:"amount"`
	CurrencyCode        string     `gorm:"type:varchar(3);default:''" json:"currency_code"`
	FailedAt            *time.Time `gorm:"type:timestamp;default:null" json:"failed_at"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
