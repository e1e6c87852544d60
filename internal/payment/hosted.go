package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/config"
)

// HostedCheckoutAdapter drives the Stripe-backed hosted checkout rails.
// The same session API serves card, PayNow and GrabPay; only the
// payment_method_types value differs, so one adapter type is registered
// three times with a different variant.
type HostedCheckoutAdapter struct {
	cfg     config.StripeConfig
	variant string
	client  *http.Client
	logger  *zap.Logger
}

func NewHostedCheckoutAdapter(cfg config.StripeConfig, variant string, logger *zap.Logger) *HostedCheckoutAdapter {
	return &HostedCheckoutAdapter{
		cfg:     cfg,
		variant: variant,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type checkoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	PaymentIntent string `json:"payment_intent"`
	Status        string `json:"status"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *HostedCheckoutAdapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if a.cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: stripe secret key not configured", ErrProviderUnavailable)
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = a.cfg.SuccessURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = a.cfg.CancelURL
	}
	// The redirect must carry the session id back so settlement can
	// verify the exact session that was paid.
	if !strings.Contains(successURL, "{CHECKOUT_SESSION_ID}") {
		sep := "?"
		if strings.Contains(successURL, "?") {
			sep = "&"
		}
		successURL = successURL + sep + "session_id={CHECKOUT_SESSION_ID}"
	}

	name := req.Description
	if name == "" {
		name = "Storefront order"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", a.variant)
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][product_data][name]", name)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var session checkoutSession
	if err := a.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrProviderUnavailable)
	}

	a.logger.Info("Checkout session created",
		zap.String("variant", a.variant),
		zap.String("session_id", session.ID),
		zap.Int64("amount", req.Amount))

	return &Intent{ProviderRef: session.ID, RedirectURL: session.URL}, nil
}

func (a *HostedCheckoutAdapter) CheckStatus(ctx context.Context, providerRef string) (Status, error) {
	var session checkoutSession
	path := "/v1/checkout/sessions/" + url.PathEscape(providerRef)
	if err := a.do(ctx, http.MethodGet, path, nil, &session); err != nil {
		return StatusFailed, err
	}

	switch {
	case session.PaymentStatus == "paid":
		return StatusCompleted, nil
	case session.Status == "expired":
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// Refund refunds the payment intent behind a checkout session. A
// charge_already_refunded response counts as success.
func (a *HostedCheckoutAdapter) Refund(ctx context.Context, providerRef string, amount int64) error {
	if providerRef == "" {
		return ErrOriginalPaymentMissing
	}

	var session checkoutSession
	path := "/v1/checkout/sessions/" + url.PathEscape(providerRef)
	if err := a.do(ctx, http.MethodGet, path, nil, &session); err != nil {
		return err
	}
	if session.PaymentIntent == "" {
		return fmt.Errorf("%w: session %s has no payment intent", ErrOriginalPaymentMissing, providerRef)
	}

	form := url.Values{}
	form.Set("payment_intent", session.PaymentIntent)
	if amount > 0 {
		form.Set("amount", strconv.FormatInt(amount, 10))
	}

	err := a.do(ctx, http.MethodPost, "/v1/refunds", form, &struct{}{})
	if err != nil {
		var provErr *ProviderError
		if asProviderError(err, &provErr) && provErr.Code == "charge_already_refunded" {
			a.logger.Info("Charge already refunded, treating as success",
				zap.String("session_id", providerRef))
			return nil
		}
		return err
	}

	a.logger.Info("Refund issued",
		zap.String("variant", a.variant),
		zap.String("session_id", providerRef),
		zap.Int64("amount", amount))
	return nil
}

func (a *HostedCheckoutAdapter) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.APIBase+path, body)
	if err != nil {
		return fmt.Errorf("build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read stripe response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr stripeError
		_ = json.Unmarshal(data, &apiErr)
		return &ProviderError{
			Provider: "stripe",
			Code:     apiErr.Error.Code,
			Message:  apiErr.Error.Message,
			HTTPCode: resp.StatusCode,
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode stripe response: %w", err)
	}
	return nil
}
