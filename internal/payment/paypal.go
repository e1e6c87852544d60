package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/config"
	"storefront/internal/models"
)

// PayPalAdapter drives the PayPal Orders v2 API. CreateIntent creates
// an order; the capture happens when the shopper returns and the
// capture endpoint is hit, so CheckStatus reads the order state and
// Capture performs the actual charge.
type PayPalAdapter struct {
	cfg      config.PayPalConfig
	currency string
	client   *http.Client
	logger   *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewPayPalAdapter(cfg config.PayPalConfig, currency string, logger *zap.Logger) *PayPalAdapter {
	return &PayPalAdapter{
		cfg:      cfg,
		currency: currency,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

type paypalOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type paypalAPIError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

func (a *PayPalAdapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if a.cfg.ClientID == "" || a.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: paypal credentials not configured", ErrProviderUnavailable)
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"amount": map[string]string{
					"currency_code": strings.ToUpper(req.Currency),
					"value":         models.FormatAmount(req.Amount),
				},
			},
		},
	}

	var order paypalOrder
	if err := a.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: empty paypal order id", ErrProviderUnavailable)
	}

	var approveURL string
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
		}
	}

	a.logger.Info("PayPal order created",
		zap.String("order_id", order.ID),
		zap.Int64("amount", req.Amount))

	return &Intent{ProviderRef: order.ID, RedirectURL: approveURL}, nil
}

// Capture charges an approved order. Returns the capture id used for
// refunds later.
func (a *PayPalAdapter) Capture(ctx context.Context, orderID string) (string, error) {
	var order paypalOrder
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := a.do(ctx, http.MethodPost, path, struct{}{}, &order); err != nil {
		return "", err
	}
	if order.Status != "COMPLETED" {
		return "", fmt.Errorf("%w: paypal order status %s", ErrNotCompleted, order.Status)
	}
	for _, pu := range order.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			if c.Status == "COMPLETED" {
				return c.ID, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no completed capture on order %s", ErrNotCompleted, orderID)
}

func (a *PayPalAdapter) CheckStatus(ctx context.Context, providerRef string) (Status, error) {
	var order paypalOrder
	path := "/v2/checkout/orders/" + url.PathEscape(providerRef)
	if err := a.do(ctx, http.MethodGet, path, nil, &order); err != nil {
		return StatusFailed, err
	}

	switch order.Status {
	case "COMPLETED":
		return StatusCompleted, nil
	case "VOIDED":
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// Refund reverses a capture. providerRef here is the capture id stored
// at settlement. An already-fully-refunded capture counts as success.
func (a *PayPalAdapter) Refund(ctx context.Context, providerRef string, amount int64) error {
	if providerRef == "" {
		return ErrOriginalPaymentMissing
	}

	payload := map[string]interface{}{}
	if amount > 0 {
		payload["amount"] = map[string]string{
			"currency_code": strings.ToUpper(a.currency),
			"value":         models.FormatAmount(amount),
		}
	}

	path := "/v2/payments/captures/" + url.PathEscape(providerRef) + "/refund"
	err := a.do(ctx, http.MethodPost, path, payload, &struct{}{})
	if err != nil {
		var provErr *ProviderError
		if asProviderError(err, &provErr) && provErr.Code == "CAPTURE_FULLY_REFUNDED" {
			a.logger.Info("Capture already refunded, treating as success",
				zap.String("capture_id", providerRef))
			return nil
		}
		return err
	}

	a.logger.Info("PayPal refund issued",
		zap.String("capture_id", providerRef),
		zap.Int64("amount", amount))
	return nil
}

func (a *PayPalAdapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != "" && time.Now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.APIBase+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("build paypal token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(a.cfg.ClientID + ":" + a.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode paypal token: %w", err)
	}
	if resp.StatusCode >= 400 || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: unable to fetch paypal token", ErrProviderUnavailable)
	}

	a.accessToken = tok.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return a.accessToken, nil
}

func (a *PayPalAdapter) do(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode paypal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.APIBase+path, body)
	if err != nil {
		return fmt.Errorf("build paypal request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read paypal response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr paypalAPIError
		_ = json.Unmarshal(data, &apiErr)
		code := apiErr.Name
		if len(apiErr.Details) > 0 && apiErr.Details[0].Issue != "" {
			code = apiErr.Details[0].Issue
		}
		return &ProviderError{
			Provider: "paypal",
			Code:     code,
			Message:  apiErr.Message,
			HTTPCode: resp.StatusCode,
		}
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode paypal response: %w", err)
		}
	}
	return nil
}
