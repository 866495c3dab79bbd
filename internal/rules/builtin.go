package rules

import "github.com/opensource-finance/welfareshield/internal/domain"

// BuiltinRules returns the watch rules seeded into an empty rule store.
// After the first start all rules are managed through the API.
func BuiltinRules() []*domain.WatchRule {
	return []*domain.WatchRule{
		{
			ID:          "ghost-suspect",
			Name:        "Ghost beneficiary suspect",
			Description: "Beneficiary carries the ghost suspect tag",
			Expression:  `"Ghost Beneficiary Suspect" in risk_factors`,
			Enabled:     true,
		},
		{
			ID:          "shared-bank-high-risk",
			Name:        "Shared bank account, high risk",
			Description: "High-risk beneficiary sharing a bank account",
			Expression:  `risk_score >= 70 && "Duplicate Bank Account" in risk_factors`,
			Enabled:     true,
		},
		{
			ID:          "elderly-multi-scheme",
			Name:        "Elderly multi-scheme",
			Description: "Beneficiary over 75 enrolled in two schemes",
			Expression:  `age > 75 && size(schemes) > 1`,
			Enabled:     true,
		},
		{
			ID:          "payment-burst",
			Name:        "Payment burst",
			Description: "Three or more flagged payments inside the velocity window",
			Expression:  `velocity_count >= 3`,
			Enabled:     true,
		},
	}
}
