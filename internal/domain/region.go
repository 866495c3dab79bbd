package domain

// LatLng is a geographic point.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Region is a state-level entry of the static region table.
// FlaggedCount and BeneficiaryCount are fallbacks, used only when no
// generated beneficiaries fall into the region.
type Region struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	Center           LatLng  `json:"center"`
	RiskIndex        int     `json:"riskIndex"`
	AnomalyRate      float64 `json:"anomalyRate"`
	FlaggedCount     int     `json:"flaggedCount"`
	BeneficiaryCount int     `json:"beneficiaryCount"`
}

// RegionSummary is a region joined with the live population of a snapshot.
type RegionSummary struct {
	Region
	HighRiskCount int  `json:"highRiskCount"`
	Tier          Tier `json:"tier"`

	// DerivedIndex is the canonical composed risk index computed from the
	// live counts.
	DerivedIndex int `json:"derivedIndex"`
}

// RegionalAnomaly is one bar of the regional anomaly chart.
type RegionalAnomaly struct {
	Region       string `json:"region"`
	AnomalyCount int    `json:"anomalyCount"`
	RiskIndex    int    `json:"riskIndex"`
	Month        string `json:"month"`
}
