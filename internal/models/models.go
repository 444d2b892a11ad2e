package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusInitialized    = "initialized"
	StatusProcessed      = "processed"
	StatusShipped        = "shipped"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"
	StatusRefunded       = "refunded"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// ActiveStatuses are the statuses of an item still moving toward delivery.
// Everything else is terminal.
var ActiveStatuses = []string{
	StatusInitialized,
	StatusProcessed,
	StatusShipped,
	StatusOutForDelivery,
}

var allStatuses = map[string]bool{
	StatusInitialized:    true,
	StatusProcessed:      true,
	StatusShipped:        true,
	StatusOutForDelivery: true,
	StatusDelivered:      true,
	StatusCancelled:      true,
	StatusRefunded:       true,
}

var paymentStatuses = map[string]bool{
	PaymentStatusPending:  true,
	PaymentStatusPaid:     true,
	PaymentStatusFailed:   true,
	PaymentStatusRefunded: true,
}

func IsValidStatus(s string) bool { return allStatuses[s] }

func IsValidPaymentStatus(s string) bool { return paymentStatuses[s] }

func IsActiveStatus(s string) bool {
	switch s {
	case StatusInitialized, StatusProcessed, StatusShipped, StatusOutForDelivery:
		return true
	}
	return false
}

// Order carries a coarse order-level status maintained independently of its
// items; item statuses are authoritative for fulfillment reporting.
type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          int64           `json:"user_id"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	PaymentStatus   string          `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	PaymentData     json.RawMessage `json:"payment_data,omitempty"`
	ShippingAddress json.RawMessage `json:"shipping_address,omitempty"`
	BillingAddress  json.RawMessage `json:"billing_address,omitempty"`
	// WarehouseID is the legacy order-level assignment, kept for rows created
	// before attribution moved to item granularity.
	WarehouseID *int64          `json:"warehouse_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Items       []OrderItem     `json:"items,omitempty"`
	Events      []OrderEvent    `json:"events,omitempty"`
}

// ProductSnapshot is frozen at purchase time and never updated afterwards.
type ProductSnapshot struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	VariantID   *int64          `json:"variant_id,omitempty"`
	WarehouseID *int64          `json:"warehouse_id,omitempty"`
	SKU         string          `json:"sku"`
	Title       string          `json:"title"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Snapshot    ProductSnapshot `json:"product_snapshot"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderEvent is an append-only audit record; ItemID is nil for order-level
// transitions.
type OrderEvent struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	ItemID         *int64          `json:"item_id,omitempty"`
	PreviousStatus string          `json:"previous_status"`
	NewStatus      string          `json:"new_status"`
	Actor          string          `json:"actor"`
	Note           string          `json:"note,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Warehouse struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone,omitempty"`
	Email     string          `json:"email,omitempty"`
	Address   json.RawMessage `json:"address,omitempty"`
	Verified  bool            `json:"verified"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
