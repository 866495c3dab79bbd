package rules

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/welfareshield/internal/domain"
)

// Filter is an ad-hoc boolean expression used to narrow beneficiary lists.
// It sees the same variables as watch rules.
type Filter struct {
	program cel.Program
}

// Compile parses an ad-hoc filter expression.
func (e *Engine) Compile(expression string) (*Filter, error) {
	program, err := compile(e.env, expression)
	if err != nil {
		return nil, err
	}
	return &Filter{program: program}, nil
}

// Match reports whether input satisfies the filter. Evaluation errors count
// as a mismatch.
func (f *Filter) Match(input *EvaluateInput) bool {
	out, _, err := f.program.Eval(Activation(input))
	if err != nil {
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}

// MatchBeneficiary is a convenience for predicates over the beneficiary alone.
func (f *Filter) MatchBeneficiary(b *domain.Beneficiary, tier domain.Tier, velocity int64) bool {
	return f.Match(&EvaluateInput{Beneficiary: b, Tier: tier, VelocityCount: velocity})
}
