// Package rules provides the CEL-Go based watch rule engine.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/welfareshield/internal/domain"
)

// Engine evaluates watch rules against beneficiaries.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.WatchRule
	Program cel.Program
}

// Hit is the outcome of one watch rule for one beneficiary.
type Hit struct {
	RuleID  string
	Name    string
	Matched bool
	Err     error
}

// NewEngine creates a new watch rule engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := newEnv()
	if err != nil {
		return nil, err
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// newEnv declares the beneficiary variables visible to expressions.
func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("risk_score", cel.IntType),
		cel.Variable("tier", cel.StringType),
		cel.Variable("risk_factors", cel.ListType(cel.StringType)),
		cel.Variable("schemes", cel.ListType(cel.StringType)),
		cel.Variable("age", cel.IntType),
		cel.Variable("gender", cel.StringType),
		cel.Variable("state", cel.StringType),
		cel.Variable("district", cel.StringType),
		cel.Variable("block", cel.StringType),
		cel.Variable("village", cel.StringType),
		cel.Variable("flags", cel.IntType),
		// Flagged transactions inside the velocity window.
		cel.Variable("velocity_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(rule *domain.WatchRule) error {
	if rule == nil {
		return fmt.Errorf("%w: watch rule is required", domain.ErrInvalidInput)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.WatchRule) error {
	if rule == nil {
		return fmt.Errorf("%w: watch rule is required", domain.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled

	return nil
}

// LoadRules compiles and loads every enabled rule.
func (e *Engine) LoadRules(rules []*domain.WatchRule) error {
	for _, rule := range rules {
		if rule == nil || !rule.Enabled {
			continue
		}
		if err := e.LoadRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// EvaluateInput is one beneficiary plus the derived values expressions see.
type EvaluateInput struct {
	Beneficiary   *domain.Beneficiary
	Tier          domain.Tier
	VelocityCount int64
}

// EvaluateAll evaluates all loaded rules in parallel. Hits are ordered by
// rule id.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]Hit, error) {
	if input == nil || input.Beneficiary == nil {
		return nil, fmt.Errorf("%w: beneficiary is required", domain.ErrInvalidInput)
	}

	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Rule.ID < rules[j].Rule.ID })

	activation := Activation(input)
	hits := make([]Hit, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			hits[idx] = evaluateRule(ctx, r, activation)
		}(i, rule)
	}

	wg.Wait()

	return hits, ctx.Err()
}

// Matches returns the names of the loaded rules the input satisfies.
func (e *Engine) Matches(ctx context.Context, input *EvaluateInput) ([]string, error) {
	hits, err := e.EvaluateAll(ctx, input)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, h := range hits {
		if h.Matched {
			names = append(names, h.Name)
		}
	}
	return names, nil
}

func evaluateRule(ctx context.Context, rule *CompiledRule, activation map[string]any) Hit {
	hit := Hit{RuleID: rule.Rule.ID, Name: rule.Rule.Name}
	if err := ctx.Err(); err != nil {
		hit.Err = err
		return hit
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		hit.Err = fmt.Errorf("rule %s: evaluation error: %w", rule.Rule.ID, err)
		return hit
	}

	if b, ok := out.(types.Bool); ok {
		hit.Matched = bool(b)
	}
	return hit
}

// Activation maps a beneficiary onto the CEL variables.
func Activation(input *EvaluateInput) map[string]any {
	b := input.Beneficiary
	return map[string]any{
		"id":             b.ID,
		"name":           b.Name,
		"risk_score":     int64(b.RiskScore),
		"tier":           string(input.Tier),
		"risk_factors":   b.RiskFactors,
		"schemes":        b.Schemes,
		"age":            int64(b.Age),
		"gender":         b.Gender,
		"state":          b.Location.State,
		"district":       b.Location.District,
		"block":          b.Location.Block,
		"village":        b.Location.Village,
		"flags":          int64(b.Flags),
		"velocity_count": input.VelocityCount,
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(rules []*domain.WatchRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, rule := range rules {
		if rule == nil || !rule.Enabled {
			continue
		}

		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rules ordered by id.
func (e *Engine) GetLoadedRules() []*domain.WatchRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.WatchRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.WatchRule) (*CompiledRule, error) {
	program, err := compile(e.env, rule.Expression)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}

func compile(env *cel.Env, expression string) (cel.Program, error) {
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: failed to compile expression: %v", domain.ErrInvalidInput, issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression must return bool, got %s", domain.ErrInvalidInput, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	return program, nil
}
