package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
	"storefront/internal/payment"
)

func TestCheckDestination(t *testing.T) {
	s := &RefundService{originalMethods: map[string]bool{
		models.MethodCard:   true,
		models.MethodPayPal: true,
	}}

	assert.NoError(t, s.checkDestination(models.RefundDestStoreCredit, models.MethodNets))
	assert.NoError(t, s.checkDestination(models.RefundDestOriginal, models.MethodCard))

	// Rails without a refund API cannot take an original-rail refund.
	err := s.checkDestination(models.RefundDestOriginal, models.MethodNets)
	assert.ErrorIs(t, err, ErrDestinationNotAllowed)

	// An unknown destination must be rejected, not recorded verbatim:
	// a refund row carrying it would settle neither to the wallet nor
	// to the provider while still logging a REFUNDED transaction.
	err = s.checkDestination("wallet", models.MethodCard)
	assert.ErrorIs(t, err, ErrDestinationNotAllowed)
	err = s.checkDestination("", models.MethodCard)
	assert.ErrorIs(t, err, ErrDestinationNotAllowed)
}

func TestFirstApprovalGuard(t *testing.T) {
	// Restock and settlement run only when approving from a
	// not-yet-approved status; repeat approvals must not double-restock.
	assert.True(t, firstApproval(models.RefundStatusPending))
	assert.True(t, firstApproval(models.RefundStatusRejected))
	assert.False(t, firstApproval(models.RefundStatusApproved))
	assert.False(t, firstApproval(models.RefundStatusProcessed))
}

func TestCapturedOnRail(t *testing.T) {
	s := &RefundService{}
	order := &models.Order{
		ID:            1,
		Total:         10000,
		PaymentMethod: models.MethodCard,
		PaymentSummary: `{"partials":[
			{"method":"store_credit","amount":3000,"provider_ref":"wallet:1:abc"},
			{"method":"card","amount":4000,"provider_ref":"cs_1"},
			{"method":"card","amount":3000,"provider_ref":"cs_2"}
		]}`,
	}

	captured, ref, err := s.capturedOnRail(order)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), captured)
	assert.Equal(t, "cs_1", ref)
}

func TestCapturedOnRailMissingSummary(t *testing.T) {
	s := &RefundService{}

	_, _, err := s.capturedOnRail(&models.Order{ID: 1, PaymentMethod: models.MethodCard})
	assert.ErrorIs(t, err, payment.ErrOriginalPaymentMissing)
}

func TestCapturedOnRailNoRefOnRail(t *testing.T) {
	s := &RefundService{}
	order := &models.Order{
		ID:            2,
		PaymentMethod: models.MethodPayPal,
		PaymentSummary: `{"partials":[
			{"method":"store_credit","amount":5000,"provider_ref":"wallet:1:abc"}
		]}`,
	}

	_, _, err := s.capturedOnRail(order)
	assert.ErrorIs(t, err, payment.ErrOriginalPaymentMissing)
}

func TestCapturedOnRailCorruptSummary(t *testing.T) {
	s := &RefundService{}
	order := &models.Order{ID: 3, PaymentMethod: models.MethodCard, PaymentSummary: "{not json"}

	_, _, err := s.capturedOnRail(order)
	assert.Error(t, err)
}
