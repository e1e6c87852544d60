package models

import "time"

// Event types
const (
	EventTypeOrderSettled   = "ORDER_SETTLED"
	EventTypeRefundApproved = "REFUND_APPROVED"
	EventTypeRefundRejected = "REFUND_REJECTED"
	EventTypeWalletCredited = "WALLET_CREDITED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderSettledEvent published when an order is committed with its stock
// decrement
type OrderSettledEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	UserID        int64           `json:"user_id"`
	Total         int64           `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Items         []OrderItemData `json:"items"`
}

// RefundApprovedEvent published after restock and settlement
type RefundApprovedEvent struct {
	BaseEvent
	RefundID    int64  `json:"refund_id"`
	OrderID     int64  `json:"order_id"`
	UserID      int64  `json:"user_id"`
	Amount      int64  `json:"amount"`
	Destination string `json:"destination"`
}

// RefundRejectedEvent published on rejection
type RefundRejectedEvent struct {
	BaseEvent
	RefundID int64 `json:"refund_id"`
	OrderID  int64 `json:"order_id"`
	UserID   int64 `json:"user_id"`
}

// WalletCreditedEvent published when store credit is added
type WalletCreditedEvent struct {
	BaseEvent
	UserID  int64  `json:"user_id"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
	Balance int64  `json:"balance"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
