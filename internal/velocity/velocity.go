// Package velocity provides beneficiary payment velocity calculation.
package velocity

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/opensource-finance/welfareshield/internal/domain"
)

// Source lists the flagged transactions of a beneficiary, newest first.
type Source interface {
	TransactionsFor(beneficiaryID string) []domain.Transaction
}

// Service counts flagged transactions inside a trailing window of days.
type Service struct {
	source Source
	today  civil.Date
}

// NewService creates a velocity service anchored at today.
func NewService(source Source, today civil.Date) *Service {
	return &Service{
		source: source,
		today:  today,
	}
}

// GetTransactionCount returns the number of flagged transactions of a
// beneficiary dated within the last windowDays days, today included.
func (s *Service) GetTransactionCount(ctx context.Context, beneficiaryID string, windowDays int) (int64, error) {
	if beneficiaryID == "" {
		return 0, fmt.Errorf("%w: beneficiaryID is required", domain.ErrInvalidInput)
	}
	if windowDays <= 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	since := s.today.AddDays(-windowDays)

	var count int64
	for _, tx := range s.source.TransactionsFor(beneficiaryID) {
		// Transactions are date-descending, so the first one outside the
		// window ends the scan.
		if !tx.Date.After(since) {
			break
		}
		count++
	}
	return count, nil
}
