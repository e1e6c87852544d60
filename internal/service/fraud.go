package service

import (
	"strings"

	"storefront/internal/models"
)

// Thresholds for the risk score recorded at settlement.
const (
	fraudHighTotalCents = 50000
	fraudMediumScore    = 30
	fraudHighScore      = 60
)

// evaluateFraud computes the lightweight risk result stored in the
// order's payment summary. It never blocks settlement; admins review
// the aggregate afterwards.
func evaluateFraud(pc *models.PendingCheckout, user *models.User) *models.FraudResult {
	var score int
	var reasons []string

	if pc.Total > fraudHighTotalCents {
		score += 40
		reasons = append(reasons, "high order total")
	}

	rails := make(map[string]bool)
	for _, p := range pc.PartialPayments {
		rails[p.Method] = true
	}
	if len(rails) >= 3 {
		score += 30
		reasons = append(reasons, "many payment rails on one order")
	} else if len(rails) == 2 {
		score += 15
		reasons = append(reasons, "split across payment rails")
	}

	name := strings.TrimSpace(strings.ToLower(pc.Shipping.Name))
	if name != "" && name != strings.ToLower(user.Username) {
		score += 15
		reasons = append(reasons, "shipping name differs from account")
	}
	if strings.TrimSpace(pc.Shipping.Phone) == "" {
		score += 10
		reasons = append(reasons, "no contact phone provided")
	}

	severity := "low"
	switch {
	case score >= fraudHighScore:
		severity = "high"
	case score >= fraudMediumScore:
		severity = "medium"
	}

	return &models.FraudResult{Score: score, Severity: severity, Reasons: reasons}
}
