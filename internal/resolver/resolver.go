// Package resolver turns an entity reference into a hydrated profile by
// joining the beneficiary and transaction collections of one snapshot.
package resolver

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"time"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/opensource-finance/welfareshield/internal/cache"
	"github.com/opensource-finance/welfareshield/internal/domain"
	"github.com/opensource-finance/welfareshield/internal/index"
	"github.com/opensource-finance/welfareshield/internal/rules"
	"github.com/opensource-finance/welfareshield/internal/scoring"
)

// Linked transaction caps per entity kind.
const (
	beneficiaryLinked = 5
	stateLinked       = 8
	localityLinked    = 6
	localityFlags     = 3
)

// Bounds of the stable score given to localities without beneficiaries.
const (
	fallbackScoreMin = 55
	fallbackScoreMax = 80
)

var (
	stateSchemes    = []string{"NSAP Pension", "PM-Kisan", "NFSA", "MGNREGA"}
	localitySchemes = []string{"NSAP Pension", "PM-Kisan", "NFSA"}

	stateReasonTags = []string{
		domain.FactorHighRegionalDensity,
		domain.FactorDuplicateBankAccount,
		domain.FactorMultipleSchemeUsage,
	}
	localityReasonTags = []string{
		domain.FactorDuplicateBankAccount,
		domain.FactorMultipleSchemeUsage,
		domain.FactorHighRegionalDensity,
	}

	// beneficiaryFlagPattern cycles over a beneficiary's flag history.
	beneficiaryFlagPattern = []struct {
		kind     string
		severity domain.Tier
	}{
		{"Duplicate Bank", domain.TierHigh},
		{"Multiple IDs", domain.TierMedium},
		{"Unusual pattern", domain.TierLow},
	}
)

// Matcher reports which watch rules a beneficiary satisfies.
type Matcher interface {
	Matches(ctx context.Context, input *rules.EvaluateInput) ([]string, error)
}

// VelocityCounter counts a beneficiary's recent flagged transactions.
type VelocityCounter interface {
	GetTransactionCount(ctx context.Context, beneficiaryID string, windowDays int) (int64, error)
}

// Options configure a Resolver. Zero values disable the optional parts.
type Options struct {
	SessionID  string
	Generation int
	Today      civil.Date

	Watch              Matcher
	Velocity           VelocityCounter
	VelocityWindowDays int

	Cache    domain.Cache
	ScoreTTL time.Duration

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Resolver resolves profiles against one immutable snapshot.
// It is safe for concurrent use.
type Resolver struct {
	idx    *index.Index
	opts   Options
	log    *slog.Logger
	tracer trace.Tracer
}

// New creates a resolver over idx.
func New(idx *index.Index, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("resolver")
	}
	return &Resolver{
		idx:    idx,
		opts:   opts,
		log:    logger.With("session_id", opts.SessionID, "generation", opts.Generation),
		tracer: tracer,
	}
}

// Resolve returns the profile of entityType/id. It fails with
// domain.ErrUnknownEntityType for unrecognised kinds and with
// domain.ErrNotFound when a beneficiary or state has no match. Districts and
// villages always resolve.
func (r *Resolver) Resolve(ctx context.Context, entityType string, id string) (domain.Profile, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.Resolve",
		trace.WithAttributes(
			attribute.String("entity.type", entityType),
			attribute.String("entity.id", id),
		),
	)
	defer span.End()

	profile, err := r.resolve(ctx, entityType, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("risk.score", profile.Core().RiskScore))
	return profile, nil
}

func (r *Resolver) resolve(ctx context.Context, entityType string, id string) (domain.Profile, error) {
	kind, err := domain.ParseEntityType(entityType)
	if err != nil {
		return nil, err
	}

	switch kind {
	case domain.EntityBeneficiary:
		return r.beneficiary(ctx, id)
	case domain.EntityState:
		return r.state(id)
	default:
		return r.locality(ctx, kind, id)
	}
}

func (r *Resolver) beneficiary(ctx context.Context, id string) (*domain.BeneficiaryProfile, error) {
	b, ok := r.idx.Beneficiary(id)
	if !ok {
		return nil, fmt.Errorf("%w: beneficiary %s", domain.ErrNotFound, id)
	}

	p := &domain.BeneficiaryProfile{
		ProfileCore: domain.ProfileCore{
			EntityType:         domain.EntityBeneficiary,
			Name:               b.Name,
			Hierarchy:          b.Location,
			HierarchyPath:      b.Location.Path(),
			Schemes:            b.Schemes,
			RiskScore:          b.RiskScore,
			RiskTier:           scoring.ClassifyTier(b.RiskScore),
			RiskBreakdown:      scoring.Breakdown(b.RiskScore, scoring.BeneficiaryWeights),
			Flags:              r.beneficiaryFlags(b.Flags),
			LinkedTransactions: head(r.idx.TransactionsFor(b.ID), beneficiaryLinked),
			ReasonTags:         b.RiskFactors,
		},
		Beneficiary: b,
	}

	if r.opts.Velocity != nil && r.opts.VelocityWindowDays > 0 {
		v, err := r.opts.Velocity.GetTransactionCount(ctx, b.ID, r.opts.VelocityWindowDays)
		if err != nil {
			return nil, fmt.Errorf("velocity for %s: %w", b.ID, err)
		}
		p.Velocity = v
	}

	if r.opts.Watch != nil {
		hits, err := r.opts.Watch.Matches(ctx, &rules.EvaluateInput{
			Beneficiary:   &b,
			Tier:          p.RiskTier,
			VelocityCount: p.Velocity,
		})
		if err != nil {
			return nil, fmt.Errorf("watch rules for %s: %w", b.ID, err)
		}
		p.WatchHits = hits
	}

	return p, nil
}

// beneficiaryFlags synthesises n flag entries on the 15th of successive
// months before the current one.
func (r *Resolver) beneficiaryFlags(n int) []domain.FlagEntry {
	flags := make([]domain.FlagEntry, n)
	for i := range flags {
		pattern := beneficiaryFlagPattern[i%len(beneficiaryFlagPattern)]
		flags[i] = domain.FlagEntry{
			Date:     r.monthDay(-(i + 1), 15),
			Type:     pattern.kind,
			Severity: pattern.severity,
		}
	}
	return flags
}

func (r *Resolver) state(name string) (*domain.StateProfile, error) {
	region, ok := r.idx.Region(name)
	if !ok {
		return nil, fmt.Errorf("%w: state %s", domain.ErrNotFound, name)
	}

	txns := r.idx.TransactionsIn(domain.EntityState, region.Name)

	beneficiaryCount := len(r.idx.BeneficiariesIn(domain.EntityState, region.Name))
	if beneficiaryCount == 0 {
		beneficiaryCount = region.BeneficiaryCount
	}
	flaggedCount := len(txns)
	if flaggedCount == 0 {
		flaggedCount = region.FlaggedCount
	}

	return &domain.StateProfile{
		ProfileCore: domain.ProfileCore{
			EntityType: domain.EntityState,
			Name:       region.Name,
			Hierarchy: domain.Location{
				State:    region.Name,
				District: domain.Placeholder,
				Block:    domain.Placeholder,
				Village:  domain.Placeholder,
			},
			HierarchyPath: region.Name,
			Schemes:       stateSchemes,
			RiskScore:     region.RiskIndex,
			RiskTier:      scoring.ClassifyTier(region.RiskIndex),
			RiskBreakdown: scoring.Breakdown(region.RiskIndex, scoring.StateWeights),
			Flags: []domain.FlagEntry{
				{Date: r.monthDay(0, 1), Type: "High anomaly density", Severity: domain.TierHigh},
				{Date: r.monthDay(-1, 15), Type: "Duplicate cluster", Severity: domain.TierMedium},
			},
			LinkedTransactions: head(txns, stateLinked),
			ReasonTags:         stateReasonTags,
		},
		Code:             region.Code,
		BeneficiaryCount: beneficiaryCount,
		FlaggedCount:     flaggedCount,
		HighRiskCount:    r.idx.HighRiskIn(region.Name),
	}, nil
}

func (r *Resolver) locality(ctx context.Context, kind domain.EntityType, id string) (domain.Profile, error) {
	members := r.idx.BeneficiariesIn(kind, id)
	txns := r.idx.TransactionsIn(kind, id)

	loc := domain.Location{
		State:    domain.Placeholder,
		District: domain.Placeholder,
		Block:    domain.Placeholder,
		Village:  domain.Placeholder,
	}
	if len(members) > 0 {
		loc = members[0].Location
	} else if kind == domain.EntityDistrict {
		loc.District = id
	} else {
		loc.Village = id
	}

	score := r.localityScore(ctx, kind, id, members)

	flags := make([]domain.FlagEntry, 0, localityFlags)
	for _, tx := range head(txns, localityFlags) {
		flags = append(flags, domain.FlagEntry{Date: tx.Date, Type: tx.FlagReason, Severity: tx.Severity})
	}

	stats := domain.LocalityStats{
		BeneficiaryCount: len(members),
		FlaggedCount:     len(txns),
	}
	for _, b := range members {
		if b.RiskScore >= domain.HighRiskThreshold {
			stats.HighRiskCount++
		}
	}

	core := domain.ProfileCore{
		EntityType:         kind,
		Name:               id,
		Hierarchy:          loc,
		HierarchyPath:      loc.Path(),
		Schemes:            localitySchemes,
		RiskScore:          score,
		RiskTier:           scoring.ClassifyTier(score),
		RiskBreakdown:      scoring.Breakdown(score, scoring.LocalityWeights),
		Flags:              flags,
		LinkedTransactions: head(txns, localityLinked),
		ReasonTags:         localityReasonTags,
	}

	if kind == domain.EntityDistrict {
		return &domain.DistrictProfile{ProfileCore: core, LocalityStats: stats}, nil
	}
	return &domain.VillageProfile{ProfileCore: core, LocalityStats: stats}, nil
}

// localityScore is the rounded mean score of the members, or a stable
// value derived from the identifier when there are none. Results are
// cached per snapshot generation; cache failures only cost a recompute.
func (r *Resolver) localityScore(ctx context.Context, kind domain.EntityType, id string, members []domain.Beneficiary) int {
	key := fmt.Sprintf("score:%d:%s:%s", r.opts.Generation, kind, id)
	c := r.opts.Cache
	if c != nil && r.opts.SessionID != "" {
		var cached int
		ok, err := cache.GetJSON(ctx, c, r.opts.SessionID, key, &cached)
		if err != nil {
			r.log.Warn("locality score cache read failed", "key", key, "error", err)
		}
		if ok {
			return cached
		}
	}

	score := MeanScore(members)
	if len(members) == 0 {
		score = FallbackScore(kind, id)
	}

	if c != nil && r.opts.SessionID != "" {
		if err := cache.SetJSON(ctx, c, r.opts.SessionID, key, score, r.opts.ScoreTTL); err != nil {
			r.log.Warn("locality score cache write failed", "key", key, "error", err)
		}
	}
	return score
}

// MeanScore returns the rounded mean risk score, 0 for no beneficiaries.
func MeanScore(members []domain.Beneficiary) int {
	if len(members) == 0 {
		return 0
	}
	total := 0
	for _, b := range members {
		total += b.RiskScore
	}
	return scoring.Clamp(int(math.Round(float64(total) / float64(len(members)))))
}

// FallbackScore maps an identifier onto [55,80] with FNV-1a so the same
// locality always reads the same score.
func FallbackScore(kind domain.EntityType, id string) int {
	h := fnv.New32a()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(id))
	span := uint32(fallbackScoreMax - fallbackScoreMin + 1)
	return fallbackScoreMin + int(h.Sum32()%span)
}

// monthDay returns the given day of the month offset months from today.
func (r *Resolver) monthDay(offset int, day int) civil.Date {
	t := time.Date(r.opts.Today.Year, r.opts.Today.Month+time.Month(offset), day, 0, 0, 0, 0, time.UTC)
	return civil.DateOf(t)
}

// head returns at most n transactions, never nil.
func head(txns []domain.Transaction, n int) []domain.Transaction {
	if txns == nil {
		return []domain.Transaction{}
	}
	if len(txns) > n {
		return txns[:n]
	}
	return txns
}
