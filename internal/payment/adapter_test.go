package payment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct{}

func (stubAdapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	return &Intent{ProviderRef: "stub"}, nil
}
func (stubAdapter) CheckStatus(ctx context.Context, providerRef string) (Status, error) {
	return StatusPending, nil
}
func (stubAdapter) Refund(ctx context.Context, providerRef string, amount int64) error {
	return nil
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	r.Register("card", stubAdapter{})

	a, err := r.ForMethod("card")
	require.NoError(t, err)
	assert.NotNil(t, a)

	_, err = r.ForMethod("bitcoin")
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	assert.ElementsMatch(t, []string{"card"}, r.Methods())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "completed", StatusCompleted.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "unknown", Status(99).String())
}

func TestWalletRefRoundTrip(t *testing.T) {
	ref := walletRef(42)
	assert.True(t, strings.HasPrefix(ref, "wallet:42:"))

	userID, err := userIDFromWalletRef(ref)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestUserIDFromWalletRefRejectsMalformed(t *testing.T) {
	for _, ref := range []string{"", "cs_test_123", "wallet:abc:xyz", "wallet:42"} {
		_, err := userIDFromWalletRef(ref)
		assert.ErrorIs(t, err, ErrOriginalPaymentMissing, "ref %q", ref)
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	err := error(&ProviderError{Provider: "stripe", Code: "charge_already_refunded", HTTPCode: 400})
	wrapped := errors.Join(errors.New("refund failed"), err)

	var provErr *ProviderError
	require.True(t, asProviderError(wrapped, &provErr))
	assert.Equal(t, "charge_already_refunded", provErr.Code)
}
