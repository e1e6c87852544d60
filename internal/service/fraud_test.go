package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storefront/internal/models"
)

func TestEvaluateFraudLowRisk(t *testing.T) {
	pc := &models.PendingCheckout{
		Total: 2500,
		PartialPayments: []models.PartialPayment{
			{Method: models.MethodCard, Amount: 2500},
		},
		Shipping: models.ShippingInfo{Name: "alice", Phone: "91234567"},
	}
	user := &models.User{Username: "alice"}

	res := evaluateFraud(pc, user)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, "low", res.Severity)
	assert.Empty(t, res.Reasons)
}

func TestEvaluateFraudMediumRisk(t *testing.T) {
	// Two rails (+15) plus a mismatched shipping name (+15).
	pc := &models.PendingCheckout{
		Total: 10000,
		PartialPayments: []models.PartialPayment{
			{Method: models.MethodStoreCredit, Amount: 4000},
			{Method: models.MethodCard, Amount: 6000},
		},
		Shipping: models.ShippingInfo{Name: "Bob Tan", Phone: "91234567"},
	}
	user := &models.User{Username: "alice"}

	res := evaluateFraud(pc, user)
	assert.Equal(t, 30, res.Score)
	assert.Equal(t, "medium", res.Severity)
	assert.Len(t, res.Reasons, 2)
}

func TestEvaluateFraudHighRisk(t *testing.T) {
	// High total (+40), three rails (+30), no phone (+10).
	pc := &models.PendingCheckout{
		Total: 60000,
		PartialPayments: []models.PartialPayment{
			{Method: models.MethodStoreCredit, Amount: 10000},
			{Method: models.MethodCard, Amount: 20000},
			{Method: models.MethodPayPal, Amount: 30000},
		},
		Shipping: models.ShippingInfo{Name: "alice"},
	}
	user := &models.User{Username: "alice"}

	res := evaluateFraud(pc, user)
	assert.Equal(t, 80, res.Score)
	assert.Equal(t, "high", res.Severity)
}

func TestEvaluateFraudIgnoresEmptyShippingName(t *testing.T) {
	pc := &models.PendingCheckout{
		Total:    1000,
		Shipping: models.ShippingInfo{Phone: "91234567"},
	}
	res := evaluateFraud(pc, &models.User{Username: "alice"})
	assert.Equal(t, 0, res.Score)
}
