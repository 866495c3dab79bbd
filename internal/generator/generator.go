// Package generator builds the synthetic beneficiary and transaction
// populations that back a session snapshot.
package generator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"cloud.google.com/go/civil"

	"github.com/opensource-finance/welfareshield/internal/domain"
	"github.com/opensource-finance/welfareshield/internal/scoring"
)

const (
	minRiskScore   = 15
	maxRiskScore   = 95
	maxRiskFactors = 4

	minAmount = 500
	maxAmount = 5000

	// windowMonths bounds how far back transaction dates may fall.
	windowMonths = 12

	firstBeneficiarySeq = 100001
	firstTransactionSeq = 200001
)

// Generator draws synthetic populations from an injected random source.
// A Generator is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
	now time.Time
}

// New creates a generator reading from src, with now as its clock.
func New(src rand.Source, now time.Time) *Generator {
	return &Generator{
		rng: rand.New(src),
		now: now,
	}
}

// NewSeeded creates a reproducible generator.
func NewSeeded(seed uint64, now time.Time) *Generator {
	return New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15), now)
}

// GenerateBeneficiaries returns count beneficiaries sorted by descending
// risk score.
func (g *Generator) GenerateBeneficiaries(count int) ([]domain.Beneficiary, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: beneficiary count %d", domain.ErrInvalidInput, count)
	}

	beneficiaries := make([]domain.Beneficiary, 0, count)
	usedIDs := make(map[string]struct{}, count)

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("BEN%06d", firstBeneficiarySeq+i)
		if _, ok := usedIDs[id]; ok {
			continue
		}
		usedIDs[id] = struct{}{}

		score := g.intBetween(minRiskScore, maxRiskScore)
		flags := 0
		if score > 60 {
			flags = g.intBetween(1, 5)
		}

		beneficiaries = append(beneficiaries, domain.Beneficiary{
			ID:     id,
			Name:   g.pick(firstNames) + " " + g.pick(lastNames),
			Age:    g.intBetween(25, 85),
			Gender: g.pick(genders),
			Location: domain.Location{
				State:    regions[g.rng.IntN(len(regions))].Name,
				District: g.pick(districts),
				Block:    g.pick(blocks),
				Village:  g.pick(villages),
			},
			RiskScore:   score,
			RiskFactors: g.riskFactors(score),
			Schemes:     g.schemes(),
			BankHash:    fmt.Sprintf("B***%d", g.intBetween(1000, 9999)),
			AadhaarHash: fmt.Sprintf("A***%d", g.intBetween(10000, 99999)),
			Flags:       flags,
		})
	}

	slices.SortStableFunc(beneficiaries, func(a, b domain.Beneficiary) int {
		return b.RiskScore - a.RiskScore
	})
	return beneficiaries, nil
}

// riskFactors draws tags correlated with score. Scores above 70 and 80 each
// add a distinct random tag; duplicate-bank and multiple-ID tags are drawn
// independently of score.
func (g *Generator) riskFactors(score int) []string {
	tags := make([]string, 0, maxRiskFactors)
	if score > 70 {
		tags = append(tags, g.pickExcluding(domain.RiskFactorTags, tags))
	}
	if score > 80 {
		tags = append(tags, g.pickExcluding(domain.RiskFactorTags, tags))
	}
	if g.rng.Float64() > 0.7 {
		tags = append(tags, domain.FactorDuplicateBankAccount)
	}
	if g.rng.Float64() > 0.8 {
		tags = append(tags, domain.FactorMultipleIDs)
	}

	tags = dedupe(tags)
	if len(tags) > maxRiskFactors {
		tags = tags[:maxRiskFactors]
	}
	if len(tags) == 0 {
		tags = append(tags, g.pick(mildFactors))
	}
	return tags
}

func (g *Generator) schemes() []string {
	first := g.pick(domain.Schemes)
	schemes := []string{first}
	if g.rng.Float64() > 0.6 {
		if second := g.pick(domain.Schemes); second != first {
			schemes = append(schemes, second)
		}
	}
	return schemes
}

// GenerateFlaggedTransactions returns count transactions owned by members of
// beneficiaries, sorted by descending date. Owners are drawn uniformly, not
// weighted by risk.
func (g *Generator) GenerateFlaggedTransactions(beneficiaries []domain.Beneficiary, count int) ([]domain.Transaction, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: transaction count %d", domain.ErrInvalidInput, count)
	}
	if count > 0 && len(beneficiaries) == 0 {
		return nil, fmt.Errorf("%w: transactions need at least one beneficiary", domain.ErrInvalidInput)
	}

	today := civil.DateOf(g.now)
	windowStart := civil.DateOf(g.now.AddDate(0, -windowMonths, 0))
	windowDays := today.DaysSince(windowStart)

	transactions := make([]domain.Transaction, 0, count)
	for i := 0; i < count; i++ {
		b := beneficiaries[g.rng.IntN(len(beneficiaries))]
		transactions = append(transactions, domain.Transaction{
			ID:              fmt.Sprintf("TXN%06d", firstTransactionSeq+i),
			Date:            today.AddDays(-g.intBetween(1, windowDays)),
			Scheme:          g.pick(domain.Schemes),
			Amount:          int64(g.intBetween(minAmount, maxAmount)),
			BeneficiaryID:   b.ID,
			BeneficiaryName: b.Name,
			Location:        b.Location,
			FlagReason:      g.pick(domain.FlagReasons),
			Severity:        domain.Tiers[g.rng.IntN(len(domain.Tiers))],
		})
	}

	slices.SortStableFunc(transactions, func(a, b domain.Transaction) int {
		return CompareDates(b.Date, a.Date)
	})
	return transactions, nil
}

// trendEvents annotates month offsets (months before now) with narrative
// events for chart callouts.
var trendEvents = map[int]string{
	2:  "Bank verification drive",
	4:  "Policy revision - NSAP eligibility",
	8:  "Audit conducted - UP districts",
	10: "Aadhaar linkage campaign",
}

// GenerateRiskIndexTrend returns months+1 monthly points, oldest first,
// following a smoothed random walk clamped to [25,85].
func (g *Generator) GenerateRiskIndexTrend(months int) ([]domain.TrendPoint, error) {
	if months < 0 {
		return nil, fmt.Errorf("%w: trend months %d", domain.ErrInvalidInput, months)
	}

	firstOfMonth := time.Date(g.now.Year(), g.now.Month(), 1, 0, 0, 0, 0, time.UTC)
	base := 52.0
	points := make([]domain.TrendPoint, 0, months+1)

	for m := months; m >= 0; m-- {
		month := firstOfMonth.AddDate(0, -m, 0)
		drift := math.Sin(float64(m)*0.3)*8 + (g.rng.Float64()*6 - 3)
		base = math.Max(25, math.Min(85, base+drift))

		p := domain.TrendPoint{
			Month:       month.Format("Jan 06"),
			FullDate:    civil.DateOf(month),
			RiskIndex:   scoring.Round1(base),
			AnomalyRate: scoring.Round1(base*0.12 + g.rng.Float64()*2),
		}
		if ev, ok := trendEvents[m]; ok {
			p.Events = []string{ev}
		}
		points = append(points, p)
	}
	return points, nil
}

// CompareDates orders civil dates ascending.
func CompareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (g *Generator) intBetween(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) pick(values []string) string {
	return values[g.rng.IntN(len(values))]
}

// pickExcluding draws a value not already in taken.
func (g *Generator) pickExcluding(values, taken []string) string {
	candidates := make([]string, 0, len(values))
	for _, v := range values {
		if !slices.Contains(taken, v) {
			candidates = append(candidates, v)
		}
	}
	return g.pick(candidates)
}

func dedupe(values []string) []string {
	out := values[:0]
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
