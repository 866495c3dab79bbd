package domain

import "fmt"

// EntityType names the kinds of entity a profile can be resolved for.
type EntityType string

const (
	EntityBeneficiary EntityType = "beneficiary"
	EntityState       EntityType = "state"
	EntityDistrict    EntityType = "district"
	EntityVillage     EntityType = "village"
)

// ParseEntityType validates a raw entity type.
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(s); t {
	case EntityBeneficiary, EntityState, EntityDistrict, EntityVillage:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
}

// Profile is the hydrated view of one entity. The concrete type is one of
// *BeneficiaryProfile, *StateProfile, *DistrictProfile or *VillageProfile.
type Profile interface {
	Core() *ProfileCore
	profile()
}

// ProfileCore holds the fields shared by every profile kind.
type ProfileCore struct {
	EntityType         EntityType    `json:"entityType"`
	Name               string        `json:"name"`
	Hierarchy          Location      `json:"hierarchy"`
	HierarchyPath      string        `json:"hierarchyPath"`
	Schemes            []string      `json:"schemes"`
	RiskScore          int           `json:"riskScore"`
	RiskTier           Tier          `json:"riskTier"`
	RiskBreakdown      RiskBreakdown `json:"riskBreakdown"`
	Flags              []FlagEntry   `json:"flags"`
	LinkedTransactions []Transaction `json:"linkedTransactions"`
	ReasonTags         []string      `json:"reasonTags"`
}

// Core returns the shared profile fields.
func (c *ProfileCore) Core() *ProfileCore { return c }

func (c *ProfileCore) profile() {}

// BeneficiaryProfile is the drill-down view of a single beneficiary.
type BeneficiaryProfile struct {
	ProfileCore
	Beneficiary Beneficiary `json:"beneficiary"`

	// WatchHits lists the watch rules the beneficiary matched.
	WatchHits []string `json:"watchHits,omitempty"`

	// Velocity is the number of flagged transactions in the trailing window.
	Velocity int64 `json:"velocity"`
}

// StateProfile is the drill-down view of a state from the region table.
type StateProfile struct {
	ProfileCore
	Code             string `json:"code"`
	BeneficiaryCount int    `json:"beneficiaryCount"`
	FlaggedCount     int    `json:"flaggedCount"`
	HighRiskCount    int    `json:"highRiskCount"`
}

// LocalityStats aggregates the population found at a district or village.
type LocalityStats struct {
	BeneficiaryCount int `json:"beneficiaryCount"`
	FlaggedCount     int `json:"flaggedCount"`
	HighRiskCount    int `json:"highRiskCount"`
}

// DistrictProfile is the drill-down view of a district.
type DistrictProfile struct {
	ProfileCore
	LocalityStats
}

// VillageProfile is the drill-down view of a village.
type VillageProfile struct {
	ProfileCore
	LocalityStats
}
