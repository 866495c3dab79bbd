package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Tier is a coarse risk bucket. It doubles as transaction severity.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{TierLow, TierMedium, TierHigh}

// HighRiskThreshold is the score from which an entity counts as high risk.
const HighRiskThreshold = 70

// RiskBreakdown holds illustrative weighted shares of an overall score.
// The components are not a strict decomposition and need not sum to it.
type RiskBreakdown struct {
	DuplicateIDs        int `json:"duplicateIds"`
	FlaggedTxns         int `json:"flaggedTxns"`
	RegionalAnomalies   int `json:"regionalAnomalies"`
	PopulationDeviation int `json:"populationDeviation"`
}

// FlagEntry is one line of an entity's flag history.
type FlagEntry struct {
	Date     civil.Date `json:"date"`
	Type     string     `json:"type"`
	Severity Tier       `json:"severity"`
}

// KPIs are the dashboard headline figures.
type KPIs struct {
	TotalBeneficiaries    int     `json:"totalBeneficiaries"`
	HighRiskBeneficiaries int     `json:"highRiskBeneficiaries"`
	FlaggedTransactions   int     `json:"flaggedTransactions"`
	AnomalyRate           float64 `json:"anomalyRate"`
	GhostBeneficiaries    int     `json:"ghostBeneficiaries"`
	DuplicateEntries      int     `json:"duplicateEntries"`

	FlaggedAmount decimal.Decimal `json:"flaggedAmount"`
}

// TrendPoint is one month of the risk index trend.
type TrendPoint struct {
	Month       string     `json:"month"`
	FullDate    civil.Date `json:"fullDate"`
	RiskIndex   float64    `json:"riskIndex"`
	AnomalyRate float64    `json:"anomalyRate"`
	Events      []string   `json:"events,omitempty"`
}

// MonthlyRollup aggregates flagged transactions by calendar month.
type MonthlyRollup struct {
	Month         string          `json:"month"` // YYYY-MM
	Transactions  int             `json:"transactions"`
	HighSeverity  int             `json:"highSeverity"`
	Beneficiaries int             `json:"beneficiaries"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	AverageAmount decimal.Decimal `json:"averageAmount"`
}

// AnomalyAlert is a curated explanation of why an entity was flagged.
type AnomalyAlert struct {
	ID        int      `json:"id"`
	Entity    string   `json:"entity"`
	Type      string   `json:"type"`
	District  string   `json:"district,omitempty"`
	State     string   `json:"state"`
	RiskScore int      `json:"riskScore"`
	Bullets   []string `json:"bullets"`
	Reason    string   `json:"reason"`
}
