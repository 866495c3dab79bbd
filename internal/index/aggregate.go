package index

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/welfareshield/internal/domain"
	"github.com/opensource-finance/welfareshield/internal/scoring"
)

// Display bounds of the dashboard anomaly rate.
const (
	MinAnomalyRate = 2.0
	MaxAnomalyRate = 15.0
)

// ComputeDashboardKPIs derives the headline figures. The anomaly rate is
// flagged transactions per three beneficiaries as a percentage, rounded to
// one decimal and clamped to [2,15] for display.
func ComputeDashboardKPIs(beneficiaries []domain.Beneficiary, transactions []domain.Transaction) domain.KPIs {
	k := domain.KPIs{
		TotalBeneficiaries:  len(beneficiaries),
		FlaggedTransactions: len(transactions),
		FlaggedAmount:       decimal.Zero,
	}

	for i := range beneficiaries {
		b := &beneficiaries[i]
		if b.RiskScore >= domain.HighRiskThreshold {
			k.HighRiskBeneficiaries++
		}
		if b.HasFactor(domain.FactorGhostBeneficiary) {
			k.GhostBeneficiaries++
		}
		if b.HasFactor(domain.FactorDuplicateEntry) || b.HasFactor(domain.FactorMultipleIDs) {
			k.DuplicateEntries++
		}
	}

	for _, tx := range transactions {
		k.FlaggedAmount = k.FlaggedAmount.Add(decimal.NewFromInt(tx.Amount))
	}

	rate := 0.0
	if k.TotalBeneficiaries > 0 {
		rate = scoring.Round1(float64(k.FlaggedTransactions) / float64(k.TotalBeneficiaries*3) * 100)
	}
	k.AnomalyRate = math.Max(MinAnomalyRate, math.Min(MaxAnomalyRate, rate))
	return k
}

// RegionSummaries joins every region with the live population. Displayed
// counts fall back to the static table when the region has no live count;
// DerivedIndex only ever sees live counts.
func (idx *Index) RegionSummaries() []domain.RegionSummary {
	type live struct{ beneficiaries, flagged int }

	out := make([]domain.RegionSummary, len(idx.regions))
	counts := make([]live, len(idx.regions))
	total := 0
	for i, r := range idx.regions {
		c := live{
			beneficiaries: len(idx.BeneficiariesIn(domain.EntityState, r.Name)),
			flagged:       len(idx.TransactionsIn(domain.EntityState, r.Name)),
		}
		s := domain.RegionSummary{
			Region:        r,
			HighRiskCount: idx.HighRiskIn(r.Name),
			Tier:          scoring.ClassifyTier(r.RiskIndex),
		}
		if c.beneficiaries > 0 {
			s.BeneficiaryCount = c.beneficiaries
		}
		if c.flagged > 0 {
			s.FlaggedCount = c.flagged
		}
		total += c.beneficiaries
		counts[i] = c
		out[i] = s
	}

	if len(out) == 0 {
		return out
	}
	mean := float64(total) / float64(len(out))

	for i := range out {
		s := &out[i]
		c := counts[i]
		in := scoring.IndexInputs{AnomalyRate: s.AnomalyRate}
		if c.beneficiaries > 0 {
			n := float64(c.beneficiaries)
			in.FlaggedDensity = float64(c.flagged) / n
			in.HighRiskProportion = float64(s.HighRiskCount) / n * 100
		}
		if mean > 0 {
			in.PopulationDeviation = (float64(c.beneficiaries) - mean) / mean * 100
		}
		s.DerivedIndex = scoring.ComposeIndex(in)
	}
	return out
}

// MonthlyRollups aggregates flagged transactions by calendar month, oldest
// month first.
func (idx *Index) MonthlyRollups() []domain.MonthlyRollup {
	type acc struct {
		rollup domain.MonthlyRollup
		owners map[string]struct{}
	}
	months := make(map[string]*acc)

	for _, tx := range idx.transactions {
		key := fmt.Sprintf("%04d-%02d", tx.Date.Year, int(tx.Date.Month))
		a, ok := months[key]
		if !ok {
			a = &acc{
				rollup: domain.MonthlyRollup{Month: key, TotalAmount: decimal.Zero},
				owners: make(map[string]struct{}),
			}
			months[key] = a
		}
		a.rollup.Transactions++
		if tx.Severity == domain.TierHigh {
			a.rollup.HighSeverity++
		}
		a.rollup.TotalAmount = a.rollup.TotalAmount.Add(decimal.NewFromInt(tx.Amount))
		a.owners[tx.BeneficiaryID] = struct{}{}
	}

	out := make([]domain.MonthlyRollup, 0, len(months))
	for _, a := range months {
		r := a.rollup
		r.Beneficiaries = len(a.owners)
		r.AverageAmount = r.TotalAmount.Div(decimal.NewFromInt(int64(r.Transactions))).Round(2)
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.MonthlyRollup) int {
		return strings.Compare(a.Month, b.Month)
	})
	return out
}
