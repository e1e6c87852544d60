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

func newHostedAdapter(t *testing.T, handler http.HandlerFunc) *HostedCheckoutAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewHostedCheckoutAdapter(config.StripeConfig{
		SecretKey:  "sk_test_123",
		APIBase:    srv.URL,
		SuccessURL: "http://localhost/success",
		CancelURL:  "http://localhost/cancel",
	}, "card", zap.NewNop())
}

func TestHostedCreateIntent(t *testing.T) {
	a := newHostedAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "card", r.PostForm.Get("payment_method_types[0]"))
		assert.Equal(t, "sgd", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "2500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Contains(t, r.PostForm.Get("success_url"), "session_id={CHECKOUT_SESSION_ID}")

		fmt.Fprint(w, `{"id":"cs_test_1","url":"https://checkout.stripe.test/pay/cs_test_1"}`)
	})

	intent, err := a.CreateIntent(context.Background(), IntentRequest{
		Amount:   2500,
		Currency: "SGD",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", intent.ProviderRef)
	assert.Equal(t, "https://checkout.stripe.test/pay/cs_test_1", intent.RedirectURL)
}

func TestHostedCreateIntentUnconfigured(t *testing.T) {
	a := NewHostedCheckoutAdapter(config.StripeConfig{}, "card", zap.NewNop())

	_, err := a.CreateIntent(context.Background(), IntentRequest{Amount: 100, Currency: "SGD"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestHostedCheckStatus(t *testing.T) {
	cases := []struct {
		body string
		want Status
	}{
		{`{"id":"cs_1","payment_status":"paid","status":"complete"}`, StatusCompleted},
		{`{"id":"cs_1","payment_status":"unpaid","status":"expired"}`, StatusFailed},
		{`{"id":"cs_1","payment_status":"unpaid","status":"open"}`, StatusPending},
	}

	for _, tc := range cases {
		body := tc.body
		a := newHostedAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		})

		got, err := a.CheckStatus(context.Background(), "cs_1")
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestHostedRefundAlreadyRefundedIsSuccess(t *testing.T) {
	a := newHostedAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/checkout/sessions/cs_1" {
			fmt.Fprint(w, `{"id":"cs_1","payment_intent":"pi_1"}`)
			return
		}
		require.Equal(t, "/v1/refunds", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":"charge_already_refunded","message":"Charge pi_1 has already been refunded."}}`)
	})

	err := a.Refund(context.Background(), "cs_1", 1000)
	assert.NoError(t, err)
}

func TestHostedRefundWithoutIntent(t *testing.T) {
	a := newHostedAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"cs_1"}`)
	})

	err := a.Refund(context.Background(), "cs_1", 1000)
	assert.ErrorIs(t, err, ErrOriginalPaymentMissing)

	err = a.Refund(context.Background(), "", 1000)
	assert.ErrorIs(t, err, ErrOriginalPaymentMissing)
}
