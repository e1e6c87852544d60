package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutLine is a cart line snapshotted into a pending checkout. The
// snapshot price is for display; authoritative prices are re-read at
// finalization.
type CheckoutLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// PartialPayment is one completed charge covering part of a checkout.
// Append-only within a pending checkout.
type PartialPayment struct {
	Method      string    `json:"method"`
	Amount      int64     `json:"amount"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

// ShippingInfo is the delivery detail captured when checkout begins.
type ShippingInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Notes   string `json:"notes,omitempty"`
}

// PendingCheckout is the transient staged checkout held in the keyed
// session store until it settles into an order or is abandoned. It is
// never persisted to the database; losing one mid-flight loses no order.
type PendingCheckout struct {
	UserID          int64            `json:"user_id"`
	Lines           []CheckoutLine   `json:"lines"`
	Total           int64            `json:"total"`
	Remaining       int64            `json:"remaining"`
	Shipping        ShippingInfo     `json:"shipping"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
	PartialPayments []PartialPayment `json:"partial_payments,omitempty"`

	// Provider correlation ids for in-flight intents.
	StripeSessionID  string `json:"stripe_session_id,omitempty"`
	PayPalOrderID    string `json:"paypal_order_id,omitempty"`
	NetsRetrievalRef string `json:"nets_retrieval_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ApplyPayment appends a partial payment and decrements the remaining
// balance, clamping so remaining never goes negative. It returns the
// amount actually applied. The conservation invariant
// sum(partials) + remaining == total holds before and after.
func (pc *PendingCheckout) ApplyPayment(method string, amount int64, providerRef string) int64 {
	applied := amount
	if applied > pc.Remaining {
		applied = pc.Remaining
	}
	if applied <= 0 {
		return 0
	}
	pc.PartialPayments = append(pc.PartialPayments, PartialPayment{
		Method:      method,
		Amount:      applied,
		ProviderRef: providerRef,
		CapturedAt:  time.Now(),
	})
	pc.Remaining -= applied
	return applied
}

// Paid reports whether the full total has been captured.
func (pc *PendingCheckout) Paid() bool {
	return pc.Remaining == 0
}

// CapturedOn sums the partial payments captured on one method.
func (pc *PendingCheckout) CapturedOn(method string) int64 {
	var sum int64
	for _, p := range pc.PartialPayments {
		if p.Method == method {
			sum += p.Amount
		}
	}
	return sum
}

// PaymentSummary is serialized onto the order row at settlement for
// refunds and reconciliation.
type PaymentSummary struct {
	Partials []PartialPayment `json:"partials"`
	Fraud    *FraudResult     `json:"fraud,omitempty"`
	Provider map[string]string `json:"provider,omitempty"`
}

// FraudResult is the lightweight risk check recorded at settlement.
type FraudResult struct {
	Score    int      `json:"score"`
	Severity string   `json:"severity"`
	Reasons  []string `json:"reasons,omitempty"`
}

// ParseAmount converts a dollar string such as "12.34" to cents,
// rejecting non-positive and sub-cent amounts.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", s)
	}
	v := cents.IntPart()
	if v <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %q", s)
	}
	return v, nil
}

// FormatAmount renders cents as a dollar string with two decimals.
func FormatAmount(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
