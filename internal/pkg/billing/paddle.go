package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Event is the Paddle notification envelope.
type Event struct {
	EventID        string          `json:"event_id" validate:"required"`
	EventType      string          `json:"event_type" validate:"required"`
	OccurredAt     string          `json:"occurred_at"`
	NotificationID string          `json:"notification_id"`
	Data           json.RawMessage `json:"data"`
}

// ResourceID returns data.id, or "" when the data object has none.
func (e *Event) ResourceID() string {
	var ref struct {
		ID string `json:"id"`
	}
	if len(e.Data) == 0 || json.Unmarshal(e.Data, &ref) != nil {
		return ""
	}
	return ref.ID
}

// EnvelopeError reports a body that is valid JSON but lacks event_id or
// event_type.
type EnvelopeError struct {
	Missing []string
}

func (e *EnvelopeError) Error() string {
	return "webhook envelope missing " + strings.Join(e.Missing, ", ")
}

// ParseEvent decodes and validates a raw webhook body.
func ParseEvent(raw []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, err
	}
	evt.EventID = strings.TrimSpace(evt.EventID)
	evt.EventType = strings.TrimSpace(evt.EventType)
	if err := validate.Struct(&evt); err != nil {
		envErr := &EnvelopeError{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				envErr.Missing = append(envErr.Missing, jsonFieldName(fe.Field()))
			}
		}
		return nil, envErr
	}
	return &evt, nil
}

func jsonFieldName(field string) string {
	switch field {
	case "EventID":
		return "event_id"
	case "EventType":
		return "event_type"
	default:
		return strings.ToLower(field)
	}
}

// decodeData unmarshals a resource payload and runs struct validation.
func decodeData[T any](data json.RawMessage) (*T, error) {
	var out T
	if len(data) == 0 || string(data) == "null" {
		return nil, fmt.Errorf("data object is empty")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if err := validate.Struct(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

type BillingCycle struct {
	Interval  string `json:"interval"`
	Frequency int    `json:"frequency"`
}

type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

type TimePeriod struct {
	StartsAt *string `json:"starts_at"`
	EndsAt   *string `json:"ends_at"`
}

type ProductPayload struct {
	ID          string          `json:"id" validate:"required"`
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Type        *string         `json:"type"`
	TaxCategory *string         `json:"tax_category"`
	ImageURL    *string         `json:"image_url"`
	Status      *string         `json:"status"`
	CustomData  json.RawMessage `json:"custom_data"`
	CreatedAt   *string         `json:"created_at"`
	UpdatedAt   *string         `json:"updated_at"`
}

type PriceQuantity struct {
	Minimum int `json:"minimum"`
	Maximum int `json:"maximum"`
}

type PricePayload struct {
	ID           string          `json:"id" validate:"required"`
	ProductID    string          `json:"product_id"`
	Name         *string         `json:"name"`
	Description  *string         `json:"description"`
	BillingCycle *BillingCycle   `json:"billing_cycle"`
	TrialPeriod  *BillingCycle   `json:"trial_period"`
	TaxMode      *string         `json:"tax_mode"`
	UnitPrice    *Money          `json:"unit_price"`
	Quantity     *PriceQuantity  `json:"quantity"`
	Status       *string         `json:"status"`
	CustomData   json.RawMessage `json:"custom_data"`
	CreatedAt    *string         `json:"created_at"`
	UpdatedAt    *string         `json:"updated_at"`
}

type CustomerPayload struct {
	ID               string          `json:"id" validate:"required"`
	Email            string          `json:"email" validate:"required"`
	Name             *string         `json:"name"`
	Locale           *string         `json:"locale"`
	MarketingConsent *bool           `json:"marketing_consent"`
	Status           *string         `json:"status"`
	CustomData       json.RawMessage `json:"custom_data"`
	CreatedAt        *string         `json:"created_at"`
	UpdatedAt        *string         `json:"updated_at"`
}

type DiscountPayload struct {
	ID                        string          `json:"id" validate:"required"`
	Type                      string          `json:"type" validate:"required"`
	Description               *string         `json:"description"`
	Rate                      *string         `json:"rate"`
	Amount                    *string         `json:"amount"`
	CurrencyCode              *string         `json:"currency_code"`
	Code                      *string         `json:"code"`
	EnabledForCheckout        *bool           `json:"enabled_for_checkout"`
	Recur                     *bool           `json:"recur"`
	MaximumRecurringIntervals *int            `json:"maximum_recurring_intervals"`
	UsageLimit                *int            `json:"usage_limit"`
	TimesUsed                 *int            `json:"times_used"`
	ExpiresAt                 *string         `json:"expires_at"`
	Status                    *string         `json:"status"`
	CustomData                json.RawMessage `json:"custom_data"`
	CreatedAt                 *string         `json:"created_at"`
	UpdatedAt                 *string         `json:"updated_at"`
}

type ScheduledChange struct {
	Action      string  `json:"action"`
	EffectiveAt *string `json:"effective_at"`
}

type SubscriptionItemPayload struct {
	ID                 string        `json:"id"`
	Status             string        `json:"status"`
	Quantity           int           `json:"quantity"`
	Recurring          *bool         `json:"recurring"`
	PriceID            string        `json:"price_id"`
	Price              *PricePayload `json:"price"`
	NextBilledAt       *string       `json:"next_billed_at"`
	PreviouslyBilledAt *string       `json:"previously_billed_at"`
}

// PricePaddleID prefers the embedded price object over the flat price_id.
func (i SubscriptionItemPayload) PricePaddleID() string {
	if i.Price != nil && strings.TrimSpace(i.Price.ID) != "" {
		return strings.TrimSpace(i.Price.ID)
	}
	return strings.TrimSpace(i.PriceID)
}

type SubscriptionPayload struct {
	ID                   string                    `json:"id" validate:"required"`
	Status               string                    `json:"status" validate:"required"`
	CustomerID           *string                   `json:"customer_id"`
	CurrencyCode         *string                   `json:"currency_code"`
	CollectionMode       *string                   `json:"collection_mode"`
	BillingCycle         *BillingCycle             `json:"billing_cycle"`
	StartedAt            *string                   `json:"started_at"`
	FirstBilledAt        *string                   `json:"first_billed_at"`
	NextBilledAt         *string                   `json:"next_billed_at"`
	PausedAt             *string                   `json:"paused_at"`
	CanceledAt           *string                   `json:"canceled_at"`
	CurrentBillingPeriod *TimePeriod               `json:"current_billing_period"`
	ScheduledChange      *ScheduledChange          `json:"scheduled_change"`
	Items                []SubscriptionItemPayload `json:"items"`
	CustomData           json.RawMessage           `json:"custom_data"`
	CreatedAt            *string                   `json:"created_at"`
	UpdatedAt            *string                   `json:"updated_at"`
}

type TransactionTotals struct {
	Subtotal     *string `json:"subtotal"`
	Discount     *string `json:"discount"`
	Tax          *string `json:"tax"`
	Total        *string `json:"total"`
	GrandTotal   *string `json:"grand_total"`
	Fee          *string `json:"fee"`
	Earnings     *string `json:"earnings"`
	CurrencyCode *string `json:"currency_code"`
}

type LineItemTotals struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

type LineItemProduct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TransactionLineItem struct {
	ID       string           `json:"id"`
	PriceID  string           `json:"price_id"`
	Quantity int              `json:"quantity"`
	Totals   *LineItemTotals  `json:"totals"`
	Product  *LineItemProduct `json:"product"`
}

type TransactionDetails struct {
	Totals    *TransactionTotals    `json:"totals"`
	LineItems []TransactionLineItem `json:"line_items"`
}

type TransactionPayment struct {
	PaymentAttemptID string  `json:"payment_attempt_id"`
	Status           string  `json:"status"`
	ErrorCode        *string `json:"error_code"`
	CreatedAt        *string `json:"created_at"`
}

type TransactionPayload struct {
	ID             string               `json:"id" validate:"required"`
	Status         string               `json:"status" validate:"required"`
	CustomerID     *string              `json:"customer_id"`
	SubscriptionID *string              `json:"subscription_id"`
	InvoiceID      *string              `json:"invoice_id"`
	InvoiceNumber  *string              `json:"invoice_number"`
	DiscountID     *string              `json:"discount_id"`
	Origin         *string              `json:"origin"`
	CollectionMode *string              `json:"collection_mode"`
	CurrencyCode   *string              `json:"currency_code"`
	BilledAt       *string              `json:"billed_at"`
	Details        *TransactionDetails  `json:"details"`
	Payments       []TransactionPayment `json:"payments"`
	CustomData     json.RawMessage      `json:"custom_data"`
	CreatedAt      *string              `json:"created_at"`
	UpdatedAt      *string              `json:"updated_at"`
}
