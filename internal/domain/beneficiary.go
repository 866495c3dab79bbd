package domain

import "strings"

// Placeholder is rendered for hierarchy levels that could not be resolved.
const Placeholder = "—"

// Location places an entity in the State → District → Block → Village hierarchy.
type Location struct {
	State    string `json:"state"`
	District string `json:"district"`
	Block    string `json:"block"`
	Village  string `json:"village"`
}

// Path renders the location from the most specific level upwards,
// e.g. "Village Alpha → Block B → Patna → Bihar".
func (l Location) Path() string {
	return strings.Join([]string{l.Village, l.Block, l.District, l.State}, " → ")
}

// Beneficiary is an enrolled recipient of one or more welfare schemes.
type Beneficiary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Age      int      `json:"age"`
	Gender   string   `json:"gender"`
	Location Location `json:"location"`

	// RiskScore is in [0,100].
	RiskScore int `json:"riskScore"`

	// RiskFactors holds distinct reason tags, at most four.
	RiskFactors []string `json:"riskFactors"`

	// Schemes holds one or two distinct scheme names.
	Schemes []string `json:"schemes"`

	// Masked references; never the real account or ID number.
	BankHash    string `json:"bankHash"`
	AadhaarHash string `json:"aadhaarHash"`

	// Flags is zero when RiskScore <= 60.
	Flags int `json:"flags"`
}

// HasFactor reports whether the beneficiary carries the given reason tag.
func (b *Beneficiary) HasFactor(tag string) bool {
	for _, f := range b.RiskFactors {
		if f == tag {
			return true
		}
	}
	return false
}

// Reason tags attached to beneficiaries.
const (
	FactorDuplicateBankAccount = "Duplicate Bank Account"
	FactorMultipleIDs          = "Multiple IDs"
	FactorMultipleSchemeUsage  = "Multiple Scheme Usage"
	FactorUnusualAge           = "Unusual Age Distribution"
	FactorHighRegionalDensity  = "High Regional Density"
	FactorSameAadhaarPayments  = "Same Aadhaar Multiple Payments"
	FactorElderlyAgeSkew       = "Elderly Age Skew"
	FactorGhostBeneficiary     = "Ghost Beneficiary Suspect"
	FactorDuplicateEntry       = "Duplicate Entry"
)

// RiskFactorTags is the full reason-tag vocabulary.
var RiskFactorTags = []string{
	FactorDuplicateBankAccount,
	FactorMultipleIDs,
	FactorMultipleSchemeUsage,
	FactorUnusualAge,
	FactorHighRegionalDensity,
	FactorSameAadhaarPayments,
	FactorElderlyAgeSkew,
	FactorGhostBeneficiary,
	FactorDuplicateEntry,
}

// Schemes is the set of welfare schemes disbursements are drawn from.
var Schemes = []string{"NSAP Pension", "PM-Kisan", "NFSA", "MGNREGA", "Ayushman Bharat", "Ujjwala"}
