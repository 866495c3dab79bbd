package index

import (
	"slices"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/opensource-finance/welfareshield/internal/domain"
)

// DefaultTransactionLimit caps transaction listings when no limit is given.
const DefaultTransactionLimit = 100

// Beneficiary sort orders.
const (
	SortByRiskScore = "riskScore"
	SortByName      = "name"
)

// BeneficiaryQuery narrows the beneficiary list.
type BeneficiaryQuery struct {
	MinScore int    `validate:"min=0,max=100"`
	Search   string `validate:"max=100"`
	Sort     string `validate:"omitempty,oneof=riskScore name"`
	Limit    int    `validate:"min=0,max=10000"`
}

// TransactionQuery narrows the transaction list. Zero dates are unbounded.
type TransactionQuery struct {
	Scheme   string      `validate:"max=64"`
	Severity domain.Tier `validate:"omitempty,oneof=low medium high"`
	From     civil.Date
	To       civil.Date
	Limit    int `validate:"min=0,max=10000"`
}

// FilterBeneficiaries returns the beneficiaries scoring at least MinScore
// whose name, district or state contains Search (case-insensitive) and for
// which match, when non-nil, reports true. The default order is the
// generation order, descending by risk score.
func (idx *Index) FilterBeneficiaries(q BeneficiaryQuery, match func(*domain.Beneficiary) bool) []domain.Beneficiary {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]domain.Beneficiary, 0)

	for i := range idx.beneficiaries {
		b := &idx.beneficiaries[i]
		if b.RiskScore < q.MinScore {
			continue
		}
		if search != "" && !containsFold(search, b.Name, b.Location.District, b.Location.State) {
			continue
		}
		if match != nil && !match(b) {
			continue
		}
		out = append(out, *b)
	}

	if q.Sort == SortByName {
		slices.SortStableFunc(out, func(a, b domain.Beneficiary) int {
			return strings.Compare(a.Name, b.Name)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// FilterTransactions returns matching transactions in date-descending order,
// at most Limit rows (DefaultTransactionLimit when unset).
func (idx *Index) FilterTransactions(q TransactionQuery) []domain.Transaction {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}

	var zero civil.Date
	out := make([]domain.Transaction, 0, min(limit, len(idx.transactions)))
	for _, tx := range idx.transactions {
		if len(out) == limit {
			break
		}
		if q.Scheme != "" && tx.Scheme != q.Scheme {
			continue
		}
		if q.Severity != "" && tx.Severity != q.Severity {
			continue
		}
		if q.From != zero && tx.Date.Before(q.From) {
			continue
		}
		if q.To != zero && tx.Date.After(q.To) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func containsFold(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
