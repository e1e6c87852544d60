package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/config"
)

func newNetsAdapter(t *testing.T, handler http.HandlerFunc) *NetsQRAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewNetsQRAdapter(config.NetsConfig{
		APIKey:    "key",
		ProjectID: "proj",
		APIBase:   srv.URL,
	}, zap.NewNop())
}

func netsBody(responseCode string, txnStatus int, extra map[string]interface{}) string {
	data := map[string]interface{}{
		"response_code": responseCode,
		"txn_status":    txnStatus,
	}
	for k, v := range extra {
		data[k] = v
	}
	b, _ := json.Marshal(map[string]interface{}{
		"result": map[string]interface{}{"data": data},
	})
	return string(b)
}

func TestNetsCreateIntent(t *testing.T) {
	a := newNetsAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/common/payments/nets-qr/request", r.URL.Path)
		require.Equal(t, "key", r.Header.Get("api-key"))
		require.Equal(t, "proj", r.Header.Get("project-id"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "12.50", req["amt_in_dollars"])

		fmt.Fprint(w, netsBody("00", 1, map[string]interface{}{
			"txn_retrieval_ref": "ref_123",
			"qr_code":           "aGVsbG8=",
		}))
	})

	intent, err := a.CreateIntent(context.Background(), IntentRequest{Amount: 1250, Currency: "SGD"})
	require.NoError(t, err)
	assert.Equal(t, "ref_123", intent.ProviderRef)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", intent.QRPayload)
}

func TestNetsCreateIntentRejected(t *testing.T) {
	a := newNetsAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, netsBody("55", 2, map[string]interface{}{
			"error_message": "invalid amount",
		}))
	})

	_, err := a.CreateIntent(context.Background(), IntentRequest{Amount: 1250, Currency: "SGD"})
	var provErr *ProviderError
	require.True(t, asProviderError(err, &provErr))
	assert.Equal(t, "nets", provErr.Provider)
	assert.Equal(t, "invalid amount", provErr.Message)
}

func TestNetsQuery(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		timedOut bool
		want     Status
	}{
		{"completed", netsBody("00", 1, nil), false, StatusCompleted},
		{"declined", netsBody("00", 2, nil), false, StatusFailed},
		{"still pending", netsBody("09", 0, nil), false, StatusPending},
		{"timeout poll", netsBody("09", 0, nil), true, StatusFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := tc.body
			wantTimeout := float64(0)
			if tc.timedOut {
				wantTimeout = 1
			}
			a := newNetsAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/v1/common/payments/nets-qr/query", r.URL.Path)
				var req map[string]interface{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "ref_123", req["txn_retrieval_ref"])
				assert.Equal(t, wantTimeout, req["frontend_timeout_status"])
				fmt.Fprint(w, body)
			})

			got, err := a.Query(context.Background(), "ref_123", tc.timedOut)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNetsRefundUnsupported(t *testing.T) {
	a := NewNetsQRAdapter(config.NetsConfig{}, zap.NewNop())
	err := a.Refund(context.Background(), "ref_123", 100)
	assert.ErrorIs(t, err, ErrRefundUnsupported)
}
