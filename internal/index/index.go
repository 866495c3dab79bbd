// Package index precomputes the region and beneficiary groupings of one
// generated population so region-scoped reads cost O(k) in the members of
// the region instead of a scan of the full collections.
package index

import (
	"github.com/opensource-finance/welfareshield/internal/domain"
)

// Index is an immutable view over one generation run.
// Slices returned by its accessors are shared and must not be modified.
type Index struct {
	beneficiaries []domain.Beneficiary
	transactions  []domain.Transaction
	regions       []domain.Region

	byID          map[string]int
	regionByName  map[string]int
	benByLevel    map[domain.EntityType]map[string][]domain.Beneficiary
	txByLevel     map[domain.EntityType]map[string][]domain.Transaction
	txByOwner     map[string][]domain.Transaction
	highRiskCount map[string]int // by state
	kpis          domain.KPIs
}

// Build groups beneficiaries and transactions by state, district, village
// and beneficiary id. Input order is preserved inside every group.
func Build(beneficiaries []domain.Beneficiary, transactions []domain.Transaction, regions []domain.Region) *Index {
	idx := &Index{
		beneficiaries: beneficiaries,
		transactions:  transactions,
		regions:       regions,
		byID:          make(map[string]int, len(beneficiaries)),
		regionByName:  make(map[string]int, len(regions)),
		benByLevel:    make(map[domain.EntityType]map[string][]domain.Beneficiary, 3),
		txByLevel:     make(map[domain.EntityType]map[string][]domain.Transaction, 3),
		txByOwner:     make(map[string][]domain.Transaction),
		highRiskCount: make(map[string]int),
	}

	for _, level := range []domain.EntityType{domain.EntityState, domain.EntityDistrict, domain.EntityVillage} {
		idx.benByLevel[level] = make(map[string][]domain.Beneficiary)
		idx.txByLevel[level] = make(map[string][]domain.Transaction)
	}

	for i, r := range regions {
		idx.regionByName[r.Name] = i
	}

	for i, b := range beneficiaries {
		idx.byID[b.ID] = i
		for level, groups := range idx.benByLevel {
			key := locationKey(b.Location, level)
			groups[key] = append(groups[key], b)
		}
		if b.RiskScore >= domain.HighRiskThreshold {
			idx.highRiskCount[b.Location.State]++
		}
	}

	for _, tx := range transactions {
		idx.txByOwner[tx.BeneficiaryID] = append(idx.txByOwner[tx.BeneficiaryID], tx)
		for level, groups := range idx.txByLevel {
			key := locationKey(tx.Location, level)
			groups[key] = append(groups[key], tx)
		}
	}

	idx.kpis = ComputeDashboardKPIs(beneficiaries, transactions)
	return idx
}

func locationKey(loc domain.Location, level domain.EntityType) string {
	switch level {
	case domain.EntityState:
		return loc.State
	case domain.EntityDistrict:
		return loc.District
	case domain.EntityVillage:
		return loc.Village
	}
	return ""
}

// Beneficiaries returns the full collection in generation order.
func (idx *Index) Beneficiaries() []domain.Beneficiary { return idx.beneficiaries }

// Transactions returns the full collection in generation order.
func (idx *Index) Transactions() []domain.Transaction { return idx.transactions }

// Regions returns the region table the index was built with.
func (idx *Index) Regions() []domain.Region { return idx.regions }

// KPIs returns the dashboard figures computed at build time.
func (idx *Index) KPIs() domain.KPIs { return idx.kpis }

// Beneficiary looks up a beneficiary by exact id.
func (idx *Index) Beneficiary(id string) (domain.Beneficiary, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return domain.Beneficiary{}, false
	}
	return idx.beneficiaries[i], true
}

// Region looks up a region by exact name.
func (idx *Index) Region(name string) (domain.Region, bool) {
	i, ok := idx.regionByName[name]
	if !ok {
		return domain.Region{}, false
	}
	return idx.regions[i], true
}

// BeneficiariesIn returns the beneficiaries located in the named state,
// district or village.
func (idx *Index) BeneficiariesIn(level domain.EntityType, name string) []domain.Beneficiary {
	return idx.benByLevel[level][name]
}

// TransactionsIn returns the transactions located in the named state,
// district or village.
func (idx *Index) TransactionsIn(level domain.EntityType, name string) []domain.Transaction {
	return idx.txByLevel[level][name]
}

// TransactionsFor returns the transactions owned by a beneficiary.
func (idx *Index) TransactionsFor(beneficiaryID string) []domain.Transaction {
	return idx.txByOwner[beneficiaryID]
}

// HighRiskIn counts the high-risk beneficiaries of a state.
func (idx *Index) HighRiskIn(state string) int {
	return idx.highRiskCount[state]
}
