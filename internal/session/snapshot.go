// Package session owns the per-session snapshots: one generation run with
// its index, velocity service and resolver, immutable until reset.
package session

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/opensource-finance/welfareshield/internal/domain"
	"github.com/opensource-finance/welfareshield/internal/generator"
	"github.com/opensource-finance/welfareshield/internal/index"
	"github.com/opensource-finance/welfareshield/internal/resolver"
	"github.com/opensource-finance/welfareshield/internal/velocity"
)

// Snapshot is everything one session reads. It is never mutated after
// construction, so any number of requests may share it.
type Snapshot struct {
	SessionID  string
	Generation int
	Seed       uint64
	CreatedAt  time.Time
	Today      civil.Date

	Index    *index.Index
	Trend    []domain.TrendPoint
	Velocity *velocity.Service
	Resolver *resolver.Resolver

	// VelocityWindowDays is the trailing window behind velocity_count.
	VelocityWindowDays int
}

// build runs the generator and wires the read side over its output.
func (m *Manager) build(sessionID string, generation int, seed uint64) (*Snapshot, error) {
	now := m.now().UTC()
	cfg := m.cfg.Generator

	gen := generator.NewSeeded(seed, now)

	bens, err := gen.GenerateBeneficiaries(cfg.Beneficiaries)
	if err != nil {
		return nil, fmt.Errorf("generate beneficiaries: %w", err)
	}
	txs, err := gen.GenerateFlaggedTransactions(bens, cfg.Transactions)
	if err != nil {
		return nil, fmt.Errorf("generate transactions: %w", err)
	}
	trend, err := gen.GenerateRiskIndexTrend(cfg.TrendMonths)
	if err != nil {
		return nil, fmt.Errorf("generate trend: %w", err)
	}

	today := civil.DateOf(now)
	idx := index.Build(bens, txs, generator.Regions())
	vel := velocity.NewService(idx, today)

	res := resolver.New(idx, resolver.Options{
		SessionID:          sessionID,
		Generation:         generation,
		Today:              today,
		Watch:              m.watch,
		Velocity:           vel,
		VelocityWindowDays: cfg.VelocityWindowDays,
		Cache:              m.cache,
		ScoreTTL:           m.cfg.ScoreTTL,
		Logger:             m.logger,
		Tracer:             m.tracer,
	})

	return &Snapshot{
		SessionID:  sessionID,
		Generation: generation,
		Seed:       seed,
		CreatedAt:  now,
		Today:      today,
		Index:      idx,
		Trend:      trend,
		Velocity:   vel,
		Resolver:   res,

		VelocityWindowDays: cfg.VelocityWindowDays,
	}, nil
}
