package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeNewOrder          = "new_order"
	EventTypeOrderStatusUpdate = "order_status_update"
	EventTypePaymentCallback   = "payment_callback"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Header exposes the common fields so events can be routed generically.
func (b BaseEvent) Header() BaseEvent { return b }

// NewOrderEvent is broadcast after an order commits
type NewOrderEvent struct {
	BaseEvent
	OrderID        int64           `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	OrderType      string          `json:"order_type"`
	TableID        *int64          `json:"table_id,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// OrderKey groups the event with the rest of its order's events
func (e *NewOrderEvent) OrderKey() int64 { return e.OrderID }

// OrderStatusUpdateEvent is broadcast after every successful status write
type OrderStatusUpdateEvent struct {
	BaseEvent
	OrderID         int64  `json:"order_id"`
	OrderNumber     string `json:"order_number"`
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	PaymentVerified bool   `json:"payment_verified"`
}

// OrderKey groups the event with the rest of its order's events
func (e *OrderStatusUpdateEvent) OrderKey() int64 { return e.OrderID }

// PaymentCallbackEvent carries a gateway webhook payload, either straight
// from the HTTP webhook or relayed through the payment-callbacks topic.
type PaymentCallbackEvent struct {
	BaseEvent
	CallbackID  string          `json:"callback_id"`
	ReferenceID string          `json:"reference_id"`
	ProviderID  string          `json:"provider_id"`
	Status      string          `json:"status"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Raw         string          `json:"raw,omitempty"`
}
