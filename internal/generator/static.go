package generator

import "github.com/opensource-finance/welfareshield/internal/domain"

var chartMonths = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"}

// RegionalAnomalies derives the regional anomaly chart from the region table.
func RegionalAnomalies() []domain.RegionalAnomaly {
	out := make([]domain.RegionalAnomaly, len(regions))
	for i, r := range regions {
		out[i] = domain.RegionalAnomaly{
			Region:       r.Name,
			AnomalyCount: r.FlaggedCount,
			RiskIndex:    r.RiskIndex,
			Month:        chartMonths[i%len(chartMonths)],
		}
	}
	return out
}

// AnomalyAlerts returns the curated explainable alerts.
func AnomalyAlerts() []domain.AnomalyAlert {
	return []domain.AnomalyAlert{
		{
			ID: 1, Entity: "Village Alpha", Type: "village", District: "Patna", State: "Bihar", RiskScore: 87,
			Bullets: []string{"42% beneficiaries share 3 bank accounts", "Pension count 3× district average", "15 duplicate Aadhaar referrals"},
			Reason:  "Concentrated bank account usage and above-normal pension density suggest verification needed.",
		},
		{
			ID: 2, Entity: "Block B", Type: "block", District: "Muzaffarpur", State: "Bihar", RiskScore: 72,
			Bullets: []string{"28% duplicate ID entries in MGNREGA", "Elderly age skew: 45% over 70", "Unusual payment clustering in Oct-Nov"},
			Reason:  "Multiple data quality flags and age distribution anomalies warrant field verification.",
		},
		{
			ID: 3, Entity: "Gaya District", Type: "district", State: "Bihar", RiskScore: 78,
			Bullets: []string{"High-risk beneficiary count 2.1× state average", "23% flagged transactions in Q4", "Ghost beneficiary suspects: 12"},
			Reason:  "District shows elevated risk across multiple indicators. Priority audit recommended.",
		},
		{
			ID: 4, Entity: "Village Delta", Type: "village", District: "Lucknow", State: "Uttar Pradesh", RiskScore: 65,
			Bullets: []string{"Same bank account used by 8 beneficiaries", "Multiple scheme overlap for 15%", "Population deviation +35% from block norm"},
			Reason:  "Bank account sharing and scheme overlap require beneficiary verification.",
		},
		{
			ID: 5, Entity: "Block D", Type: "block", District: "Kanpur", State: "Uttar Pradesh", RiskScore: 58,
			Bullets: []string{"19% duplicate entries in NFSA", "Payment timing anomalies", "Aadhaar linkage incomplete for 8%"},
			Reason:  "Data quality issues and verification gaps flagged for review.",
		},
	}
}
