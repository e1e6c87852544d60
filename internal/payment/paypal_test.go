package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/config"
)

func newPayPalAdapter(t *testing.T, handler http.HandlerFunc) *PayPalAdapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			fmt.Fprint(w, `{"access_token":"tok_1","expires_in":3600}`)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return NewPayPalAdapter(config.PayPalConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		APIBase:      srv.URL,
	}, "SGD", zap.NewNop())
}

func TestPayPalCreateIntent(t *testing.T) {
	a := newPayPalAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders", r.URL.Path)
		require.Equal(t, "Bearer tok_1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":"ORD1","status":"CREATED","links":[{"href":"https://paypal.test/approve/ORD1","rel":"approve"}]}`)
	})

	intent, err := a.CreateIntent(context.Background(), IntentRequest{Amount: 1999, Currency: "sgd"})
	require.NoError(t, err)
	assert.Equal(t, "ORD1", intent.ProviderRef)
	assert.Equal(t, "https://paypal.test/approve/ORD1", intent.RedirectURL)
}

func TestPayPalCaptureReturnsCaptureID(t *testing.T) {
	a := newPayPalAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders/ORD1/capture", r.URL.Path)
		fmt.Fprint(w, `{"id":"ORD1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP1","status":"COMPLETED"}]}}]}`)
	})

	captureID, err := a.Capture(context.Background(), "ORD1")
	require.NoError(t, err)
	assert.Equal(t, "CAP1", captureID)
}

func TestPayPalCaptureNotCompleted(t *testing.T) {
	a := newPayPalAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"ORD1","status":"PAYER_ACTION_REQUIRED"}`)
	})

	_, err := a.Capture(context.Background(), "ORD1")
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func TestPayPalRefundFullyRefundedIsSuccess(t *testing.T) {
	a := newPayPalAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/payments/captures/CAP1/refund", r.URL.Path)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed.","details":[{"issue":"CAPTURE_FULLY_REFUNDED"}]}`)
	})

	err := a.Refund(context.Background(), "CAP1", 500)
	assert.NoError(t, err)
}

func TestPayPalRefundWithoutCapture(t *testing.T) {
	a := NewPayPalAdapter(config.PayPalConfig{}, "SGD", zap.NewNop())
	err := a.Refund(context.Background(), "", 500)
	assert.ErrorIs(t, err, ErrOriginalPaymentMissing)
}
