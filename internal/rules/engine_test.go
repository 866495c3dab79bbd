package rules

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/opensource-finance/welfareshield/internal/domain"
)

func testBeneficiary() *domain.Beneficiary {
	return &domain.Beneficiary{
		ID:          "BEN100001",
		Name:        "Lakshmi Nair",
		Age:         78,
		Gender:      "Female",
		RiskScore:   84,
		RiskFactors: []string{domain.FactorDuplicateBankAccount, domain.FactorGhostBeneficiary},
		Schemes:     []string{"NSAP Pension", "NFSA"},
		Location:    domain.Location{State: "Bihar", District: "Patna", Block: "Block A", Village: "Village Alpha"},
		Flags:       3,
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.WatchRule{
		ID:         "test-rule-001",
		Name:       "Test Rule",
		Expression: "risk_score > 50",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	t.Run("Syntax", func(t *testing.T) {
		err := engine.LoadRule(&domain.WatchRule{ID: "bad", Expression: "this is not valid CEL !!!", Enabled: true})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("NonBoolean", func(t *testing.T) {
		err := engine.LoadRule(&domain.WatchRule{ID: "score", Expression: "risk_score * 2", Enabled: true})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for int expression, got %v", err)
		}
	})

	t.Run("Nil", func(t *testing.T) {
		if err := engine.LoadRule(nil); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for nil rule, got %v", err)
		}
	})

	t.Run("UnknownVariable", func(t *testing.T) {
		err := engine.LoadRule(&domain.WatchRule{ID: "amount", Expression: "amount > 100.0", Enabled: true})
		if err == nil {
			t.Error("expected error for undeclared variable")
		}
	})

	if engine.RulesCount() != 0 {
		t.Errorf("invalid rules must not load, got %d", engine.RulesCount())
	}
}

func TestValidateRuleDoesNotLoad(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.ValidateRule(&domain.WatchRule{ID: "ok", Expression: "flags > 0"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("ValidateRule loaded a rule")
	}
	if err := engine.ValidateRule(nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil rule, got %v", err)
	}
}

func TestEvaluateAll(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRules([]*domain.WatchRule{
		{ID: "a-ghost", Name: "Ghost", Expression: `"Ghost Beneficiary Suspect" in risk_factors`, Enabled: true},
		{ID: "b-young", Name: "Young", Expression: "age < 30", Enabled: true},
		{ID: "c-bihar", Name: "Bihar high tier", Expression: `state == "Bihar" && tier == "high"`, Enabled: true},
		{ID: "d-off", Name: "Disabled", Expression: "true", Enabled: false},
	})

	if engine.RulesCount() != 3 {
		t.Fatalf("expected 3 enabled rules, got %d", engine.RulesCount())
	}

	ctx := context.Background()
	hits, err := engine.EvaluateAll(ctx, &EvaluateInput{Beneficiary: testBeneficiary(), Tier: domain.TierHigh})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	want := []struct {
		id      string
		matched bool
	}{
		{"a-ghost", true},
		{"b-young", false},
		{"c-bihar", true},
	}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(hits))
	}
	for i, w := range want {
		if hits[i].RuleID != w.id || hits[i].Matched != w.matched {
			t.Errorf("hit %d: expected %s=%v, got %s=%v", i, w.id, w.matched, hits[i].RuleID, hits[i].Matched)
		}
		if hits[i].Err != nil {
			t.Errorf("hit %d: unexpected error %v", i, hits[i].Err)
		}
	}

	names, err := engine.Matches(ctx, &EvaluateInput{Beneficiary: testBeneficiary(), Tier: domain.TierHigh})
	if err != nil {
		t.Fatalf("matches failed: %v", err)
	}
	if len(names) != 2 || names[0] != "Ghost" || names[1] != "Bihar high tier" {
		t.Errorf("unexpected matches: %v", names)
	}
}

func TestEvaluateRequiresBeneficiary(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if _, err := engine.EvaluateAll(context.Background(), &EvaluateInput{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestVelocityRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.WatchRule{
		ID:         "velocity-check-001",
		Name:       "Payment burst",
		Expression: "velocity_count >= 3",
		Enabled:    true,
	})

	ctx := context.Background()
	input := &EvaluateInput{Beneficiary: testBeneficiary(), VelocityCount: 2}

	hits, _ := engine.EvaluateAll(ctx, input)
	if hits[0].Matched {
		t.Error("expected no match with 2 payments in window")
	}

	input.VelocityCount = 5
	hits, _ = engine.EvaluateAll(ctx, input)
	if !hits[0].Matched {
		t.Error("expected match with 5 payments in window")
	}
}

func TestParallelExecution(t *testing.T) {
	engine, _ := NewEngine(3)
	defer engine.Close()

	for i := 0; i < 10; i++ {
		engine.LoadRule(&domain.WatchRule{
			ID:         fmt.Sprintf("rule-%d", i),
			Name:       fmt.Sprintf("Rule %d", i),
			Expression: fmt.Sprintf("risk_score > %d", i*10),
			Enabled:    true,
		})
	}

	if engine.RulesCount() != 10 {
		t.Fatalf("expected 10 rules, got %d", engine.RulesCount())
	}

	hits, err := engine.EvaluateAll(context.Background(), &EvaluateInput{Beneficiary: testBeneficiary()})
	if err != nil {
		t.Fatalf("parallel evaluation failed: %v", err)
	}
	if len(hits) != 10 {
		t.Fatalf("expected 10 hits, got %d", len(hits))
	}

	// risk_score 84 passes thresholds 0..80 and fails 90.
	for i, h := range hits {
		if h.RuleID != fmt.Sprintf("rule-%d", i) {
			t.Errorf("hits not ordered by id: %s at %d", h.RuleID, i)
		}
		if want := i < 9; h.Matched != want {
			t.Errorf("rule %d: expected matched=%v, got %v", i, want, h.Matched)
		}
	}
}

func TestCancelledContext(t *testing.T) {
	engine, _ := NewEngine(2)
	defer engine.Close()

	engine.LoadRule(&domain.WatchRule{ID: "r", Expression: "true", Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.EvaluateAll(ctx, &EvaluateInput{Beneficiary: testBeneficiary()}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.WatchRule{ID: "old", Expression: "true", Enabled: true})

	err := engine.ReloadRules([]*domain.WatchRule{
		{ID: "new-1", Expression: "flags > 1", Enabled: true},
		{ID: "new-2", Expression: "age > 60", Enabled: true},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	loaded := engine.GetLoadedRules()
	if len(loaded) != 2 || loaded[0].ID != "new-1" || loaded[1].ID != "new-2" {
		t.Errorf("unexpected rules after reload: %v", loaded)
	}

	// A bad rule leaves the previous set in place.
	err = engine.ReloadRules([]*domain.WatchRule{{ID: "broken", Expression: "flags >", Enabled: true}})
	if err == nil {
		t.Fatal("expected reload error")
	}
	if engine.RulesCount() != 2 {
		t.Errorf("failed reload replaced rules, got %d", engine.RulesCount())
	}
}

func TestBuiltinRulesCompile(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("builtin rules must compile: %v", err)
	}
	if engine.RulesCount() != len(BuiltinRules()) {
		t.Errorf("expected %d rules, got %d", len(BuiltinRules()), engine.RulesCount())
	}

	names, _ := engine.Matches(context.Background(), &EvaluateInput{Beneficiary: testBeneficiary(), VelocityCount: 4})
	if len(names) != 4 {
		t.Errorf("expected every builtin rule to match the test beneficiary, got %v", names)
	}
}

func TestFilter(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	f, err := engine.Compile(`village == "Village Alpha" && size(schemes) == 2`)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	b := testBeneficiary()
	if !f.MatchBeneficiary(b, domain.TierHigh, 0) {
		t.Error("expected filter to match")
	}

	b.Location.Village = "Village Beta"
	if f.MatchBeneficiary(b, domain.TierHigh, 0) {
		t.Error("expected filter not to match")
	}

	if _, err := engine.Compile("risk_score"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for non-boolean filter, got %v", err)
	}
}
