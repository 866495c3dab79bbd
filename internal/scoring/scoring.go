// Package scoring maps weighted risk sub-factors to bounded scores and tiers.
//
// Risk Index = 0.30 × Anomaly Rate (0-100)
//            + 0.30 × Flagged Transaction Density (normalized)
//            + 0.20 × High-Risk Beneficiary Proportion
//            + 0.20 × Population Deviation from Norm
package scoring

import (
	"math"

	"github.com/opensource-finance/welfareshield/internal/domain"
)

// Tier thresholds.
const (
	MediumThreshold = 40
	HighThreshold   = domain.HighRiskThreshold
)

// ClassifyTier buckets a 0-100 score into low, medium or high.
func ClassifyTier(score int) domain.Tier {
	switch {
	case score < MediumThreshold:
		return domain.TierLow
	case score < HighThreshold:
		return domain.TierMedium
	default:
		return domain.TierHigh
	}
}

// IndexInputs are the raw sub-factors of the composed risk index.
type IndexInputs struct {
	// AnomalyRate is a percentage, passed through.
	AnomalyRate float64

	// FlaggedDensity is scaled ×10.
	FlaggedDensity float64

	// HighRiskProportion is a percentage, scaled ×2.
	HighRiskProportion float64

	// PopulationDeviation is a signed percentage, scaled ×5 on its magnitude.
	PopulationDeviation float64
}

// Component weights of the composed index.
const (
	WeightAnomaly    = 0.30
	WeightDensity    = 0.30
	WeightHighRisk   = 0.20
	WeightDeviation  = 0.20
	componentCeiling = 100.0
)

// ComposeIndex normalises each input into [0,100] and combines them with the
// canonical weights, rounded to the nearest integer.
func ComposeIndex(in IndexInputs) int {
	anomaly := normalise(in.AnomalyRate)
	density := normalise(in.FlaggedDensity * 10)
	highRisk := normalise(in.HighRiskProportion * 2)
	deviation := normalise(math.Abs(in.PopulationDeviation) * 5)

	return round(WeightAnomaly*anomaly +
		WeightDensity*density +
		WeightHighRisk*highRisk +
		WeightDeviation*deviation)
}

func normalise(v float64) float64 {
	return math.Max(0, math.Min(componentCeiling, v))
}

// Weights are the shares of an overall score attributed to each
// RiskBreakdown component.
type Weights struct {
	DuplicateIDs        float64
	FlaggedTxns         float64
	RegionalAnomalies   float64
	PopulationDeviation float64
}

// Breakdown weights per entity kind.
var (
	BeneficiaryWeights = Weights{0.35, 0.25, 0.20, 0.20}
	StateWeights       = Weights{0.30, 0.35, 0.20, 0.15}
	LocalityWeights    = Weights{0.32, 0.28, 0.22, 0.18}
)

// Breakdown splits score into its illustrative weighted shares.
func Breakdown(score int, w Weights) domain.RiskBreakdown {
	s := float64(score)
	return domain.RiskBreakdown{
		DuplicateIDs:        round(s * w.DuplicateIDs),
		FlaggedTxns:         round(s * w.FlaggedTxns),
		RegionalAnomalies:   round(s * w.RegionalAnomalies),
		PopulationDeviation: round(s * w.PopulationDeviation),
	}
}

// Clamp bounds score to [0,100].
func Clamp(score int) int {
	return max(0, min(100, score))
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round(v float64) int {
	return int(math.Round(v))
}
