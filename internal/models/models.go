package models

import "time"

// Product is a catalog row. Price is in cents; Quantity is the live
// available stock guarded by conditional decrements.
type Product struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Category  string    `db:"category" json:"category"`
	Image     string    `db:"image" json:"image,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CartItem is a persisted cart line. Name/Price/Image are denormalized
// for display only and re-validated against Product at checkout.
type CartItem struct {
	UserID    int64  `db:"user_id" json:"-"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Quantity  int    `db:"quantity" json:"quantity"`
	Name      string `db:"name" json:"name"`
	Price     int64  `db:"price" json:"price"`
	Image     string `db:"image" json:"image,omitempty"`
}

// Order is immutable after creation except for its status fields.
type Order struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Total          int64     `db:"total" json:"total"`
	Notes          string    `db:"notes" json:"notes,omitempty"`
	Status         string    `db:"status" json:"status"`
	ShippingStatus string    `db:"shipping_status" json:"shipping_status"`
	PaymentMethod  string    `db:"payment_method" json:"payment_method"`
	PaymentSummary string    `db:"payment_summary" json:"payment_summary,omitempty"`
	ProviderRef    string    `db:"provider_ref" json:"provider_ref,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// OrderItem locks the unit price at time of sale.
type OrderItem struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   int64  `db:"order_id" json:"order_id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Name      string `db:"name" json:"name,omitempty"`
	Price     int64  `db:"price" json:"price"`
	Quantity  int    `db:"quantity" json:"quantity"`
}

// Refund tracks a request against an order. Amounts are cents;
// ApprovedAmount is set when an admin approves and may differ from the
// requested amount.
type Refund struct {
	ID             int64     `db:"id" json:"id"`
	OrderID        int64     `db:"order_id" json:"order_id"`
	Amount         int64     `db:"amount" json:"amount"`
	ApprovedAmount *int64    `db:"approved_amount" json:"approved_amount,omitempty"`
	Reason         string    `db:"reason" json:"reason"`
	Destination    string    `db:"destination" json:"destination"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Wallet holds the store-credit balance for one user.
type Wallet struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WalletTransaction is append-only. Amount is signed: positive for
// credits (top-ups, refunds), negative for store-credit payments.
type WalletTransaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Method      string    `db:"method" json:"method"`
	Status      string    `db:"status" json:"status"`
	ProviderRef string    `db:"provider_ref" json:"provider_ref,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Transaction is the reconciliation audit log for every external money
// movement. Amount is signed: positive for charges, negative for refunds.
type Transaction struct {
	ID         int64     `db:"id" json:"id"`
	OrderID    int64     `db:"order_id" json:"order_id"`
	PayerID    string    `db:"payer_id" json:"payer_id"`
	PayerEmail string    `db:"payer_email" json:"payer_email"`
	Amount     int64     `db:"amount" json:"amount"`
	Currency   string    `db:"currency" json:"currency"`
	Status     string    `db:"status" json:"status"`
	Method     string    `db:"method" json:"method"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Notification is a user-facing message row created by the event worker.
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// User is the identity attached to each authenticated request.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
	Password string `db:"password" json:"-"`
	Address  string `db:"address" json:"address,omitempty"`
	Contact  string `db:"contact" json:"contact,omitempty"`
	Role     string `db:"role" json:"role"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Shipping statuses
const (
	ShippingStatusProcessing = "processing"
	ShippingStatusShipped    = "shipped"
	ShippingStatusDelivered  = "delivered"
)

// Refund statuses. Transitions are forward-only:
// pending -> approved | rejected; approved -> processed.
const (
	RefundStatusPending   = "pending"
	RefundStatusApproved  = "approved"
	RefundStatusProcessed = "processed"
	RefundStatusRejected  = "rejected"
)

// Refund destinations
const (
	RefundDestStoreCredit = "store_credit"
	RefundDestOriginal    = "original"
)

// Payment methods
const (
	MethodCard        = "card"
	MethodPayNow      = "paynow"
	MethodGrabPay     = "grabpay"
	MethodPayPal      = "paypal"
	MethodNets        = "nets"
	MethodStoreCredit = "store_credit"
)

// AllowedMethods is the closed set a pending checkout may select.
var AllowedMethods = map[string]bool{
	MethodCard:        true,
	MethodPayNow:      true,
	MethodGrabPay:     true,
	MethodPayPal:      true,
	MethodNets:        true,
	MethodStoreCredit: true,
}

// User roles
const (
	RoleAdmin   = "admin"
	RoleUser    = "user"
	RoleDeleted = "deleted"
)

// Wallet transaction statuses
const (
	WalletTxCompleted = "completed"
)
