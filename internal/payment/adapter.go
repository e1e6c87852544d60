package payment

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable means the rail is unconfigured or the
	// provider cannot be reached; nothing was charged.
	ErrProviderUnavailable = errors.New("payment provider unavailable")

	// ErrOriginalPaymentMissing means no capture or intent reference was
	// recorded for the charge being refunded.
	ErrOriginalPaymentMissing = errors.New("no original payment reference recorded")

	// ErrNotCompleted means the provider reports the payment as not (or
	// not yet) captured.
	ErrNotCompleted = errors.New("payment not completed")

	// ErrRefundUnsupported means the rail has no refund operation; the
	// refund must be settled to store credit instead.
	ErrRefundUnsupported = errors.New("rail does not support refunds")
)

// ProviderError carries the provider's own error code so callers can
// special-case responses such as "already refunded".
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	HTTPCode int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (%d): %s %s", e.Provider, e.HTTPCode, e.Code, e.Message)
}

func asProviderError(err error, target **ProviderError) bool {
	return errors.As(err, target)
}

// Status is a provider-neutral payment state.
type Status int

const (
	StatusPending Status = iota
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// IntentRequest describes a charge to stage with a provider. Amount is
// in cents.
type IntentRequest struct {
	Amount      int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// Intent is the provider's handle for a staged charge. Exactly one of
// RedirectURL or QRPayload is set for rails that need client action.
type Intent struct {
	ProviderRef string `json:"provider_ref"`
	RedirectURL string `json:"redirect_url,omitempty"`
	QRPayload   string `json:"qr_payload,omitempty"`
}

// Adapter is the uniform contract every payment rail implements.
// Refund treats provider "already refunded" responses as success so a
// retried approval is an idempotent no-op.
type Adapter interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CheckStatus(ctx context.Context, providerRef string) (Status, error)
	Refund(ctx context.Context, providerRef string, amount int64) error
}

// Registry dispatches a payment method tag to its adapter, replacing
// string-compare branching at call sites.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds a method tag to an adapter
func (r *Registry) Register(method string, a Adapter) {
	r.adapters[method] = a
}

// ForMethod returns the adapter for a method tag
func (r *Registry) ForMethod(method string) (Adapter, error) {
	a, ok := r.adapters[method]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for method %q", ErrProviderUnavailable, method)
	}
	return a, nil
}

// Methods lists the registered method tags
func (r *Registry) Methods() []string {
	out := make([]string, 0, len(r.adapters))
	for m := range r.adapters {
		out = append(out, m)
	}
	return out
}
