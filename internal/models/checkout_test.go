package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStagedCheckout(total int64) *PendingCheckout {
	return &PendingCheckout{
		UserID:    1,
		Lines:     []CheckoutLine{{ProductID: 1, Name: "Milk", Price: total, Quantity: 1}},
		Total:     total,
		Remaining: total,
	}
}

func TestApplyPaymentConservation(t *testing.T) {
	pc := newStagedCheckout(10000)

	applied := pc.ApplyPayment(MethodStoreCredit, 3000, "wallet:1:abc")
	assert.Equal(t, int64(3000), applied)
	assert.Equal(t, int64(7000), pc.Remaining)

	applied = pc.ApplyPayment(MethodCard, 7000, "cs_123")
	assert.Equal(t, int64(7000), applied)
	assert.True(t, pc.Paid())

	// sum(partials) + remaining == total must hold after every apply
	var sum int64
	for _, p := range pc.PartialPayments {
		sum += p.Amount
	}
	assert.Equal(t, pc.Total, sum+pc.Remaining)
}

func TestApplyPaymentClampsOverpay(t *testing.T) {
	pc := newStagedCheckout(5000)

	applied := pc.ApplyPayment(MethodCard, 8000, "cs_456")
	assert.Equal(t, int64(5000), applied)
	assert.Equal(t, int64(0), pc.Remaining)
	assert.True(t, pc.Paid())

	// A second capture on a paid checkout applies nothing and leaves
	// no zero-amount partial behind.
	applied = pc.ApplyPayment(MethodPayPal, 100, "cap_1")
	assert.Equal(t, int64(0), applied)
	assert.Equal(t, int64(0), pc.Remaining)
	assert.Len(t, pc.PartialPayments, 1)
}

func TestCapturedOn(t *testing.T) {
	pc := newStagedCheckout(10000)
	pc.ApplyPayment(MethodStoreCredit, 2000, "wallet:1:a")
	pc.ApplyPayment(MethodStoreCredit, 1000, "wallet:1:b")
	pc.ApplyPayment(MethodCard, 7000, "cs_1")

	assert.Equal(t, int64(3000), pc.CapturedOn(MethodStoreCredit))
	assert.Equal(t, int64(7000), pc.CapturedOn(MethodCard))
	assert.Equal(t, int64(0), pc.CapturedOn(MethodNets))
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"12.34", 1234, true},
		{"0.01", 1, true},
		{"100", 10000, true},
		{"12.345", 0, false},
		{"0", 0, false},
		{"-5.00", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		cents, err := ParseAmount(tc.in)
		if tc.ok {
			require.NoError(t, err, "input %q", tc.in)
			assert.Equal(t, tc.cents, cents, "input %q", tc.in)
		} else {
			assert.Error(t, err, "input %q", tc.in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.34", FormatAmount(1234))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "100.00", FormatAmount(10000))
}
