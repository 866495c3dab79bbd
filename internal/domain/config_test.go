package domain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Edition != EditionCommunity {
		t.Errorf("expected community edition, got %s", cfg.Edition)
	}
	if cfg.Repository.Driver != "sqlite" || cfg.Cache.Type != "memory" || cfg.EventBus.Type != "channel" {
		t.Errorf("unexpected community backends: %s/%s/%s", cfg.Repository.Driver, cfg.Cache.Type, cfg.EventBus.Type)
	}
	if cfg.Generator.Beneficiaries != 600 || cfg.Generator.Transactions != 800 {
		t.Errorf("unexpected population sizes: %+v", cfg.Generator)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestProConfig(t *testing.T) {
	cfg := ProConfig()

	if cfg.Edition != EditionPro {
		t.Errorf("expected pro edition, got %s", cfg.Edition)
	}
	if cfg.Repository.Driver != "postgres" || cfg.Cache.Type != "redis" || cfg.EventBus.Type != "nats" {
		t.Errorf("unexpected pro backends: %s/%s/%s", cfg.Repository.Driver, cfg.Cache.Type, cfg.EventBus.Type)
	}
	if !cfg.Cache.EnableTwoPhase {
		t.Error("expected two-phase caching in pro edition")
	}
	if cfg.EventBus.NATSQueueGroup == "" {
		t.Error("expected audit subscribers to share a queue group")
	}
	if cfg.Generator != DefaultConfig().Generator {
		t.Error("pro edition should keep the default population")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("Overlay", func(t *testing.T) {
		path := filepath.Join(dir, "overlay.yaml")
		data := []byte("server:\n  port: 9090\ngenerator:\n  beneficiaries: 50\n  transactions: 40\n  seed: 7\n")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatal(err)
		}

		cfg := DefaultConfig()
		if err := LoadConfigFile(cfg, path); err != nil {
			t.Fatalf("LoadConfigFile failed: %v", err)
		}
		if cfg.Server.Port != 9090 {
			t.Errorf("expected port 9090, got %d", cfg.Server.Port)
		}
		if cfg.Generator.Beneficiaries != 50 || cfg.Generator.Seed != 7 {
			t.Errorf("unexpected generator config: %+v", cfg.Generator)
		}
		if cfg.Generator.TrendMonths != 12 {
			t.Errorf("expected untouched keys to keep defaults, got trendMonths=%d", cfg.Generator.TrendMonths)
		}
		if cfg.Server.Host != "0.0.0.0" {
			t.Errorf("expected default host, got %s", cfg.Server.Host)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.yaml")
		if err := os.WriteFile(path, []byte("generator:\n  beneficiaries: -1\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := LoadConfigFile(DefaultConfig(), path); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if err := LoadConfigFile(DefaultConfig(), filepath.Join(dir, "nope.yaml")); err == nil {
			t.Error("expected an error for a missing file")
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := func(vals map[string]string) func(string) string {
		return func(k string) string { return vals[k] }
	}

	t.Run("Overrides", func(t *testing.T) {
		cfg := DefaultConfig()
		err := ApplyEnv(cfg, env(map[string]string{
			"WELFARESHIELD_SEED":       "42",
			"WELFARESHIELD_PORT":       "8181",
			"WELFARESHIELD_LOG_FORMAT": "text",
		}))
		if err != nil {
			t.Fatalf("ApplyEnv failed: %v", err)
		}
		if cfg.Generator.Seed != 42 || cfg.Server.Port != 8181 || cfg.Logging.Format != "text" {
			t.Errorf("overrides not applied: seed=%d port=%d format=%s", cfg.Generator.Seed, cfg.Server.Port, cfg.Logging.Format)
		}
	})

	t.Run("BadValues", func(t *testing.T) {
		for _, vals := range []map[string]string{
			{"WELFARESHIELD_SEED": "-3"},
			{"WELFARESHIELD_PORT": "http"},
			{"WELFARESHIELD_PORT": "70000"},
		} {
			if err := ApplyEnv(DefaultConfig(), env(vals)); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("%v: expected ErrInvalidInput, got %v", vals, err)
			}
		}
	})
}

func TestTracingConfigTracer(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		tr := DefaultConfig().Tracing.Tracer("api")
		if _, ok := tr.(noop.Tracer); !ok {
			t.Errorf("expected a no-op tracer when tracing is disabled, got %T", tr)
		}
	})

	t.Run("Enabled", func(t *testing.T) {
		tr := ProConfig().Tracing.Tracer("resolver")
		if _, ok := tr.(noop.Tracer); ok {
			t.Error("expected the global tracer provider when tracing is enabled")
		}
		_, span := tr.Start(context.Background(), "resolve")
		span.End()
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"Default", func(*Config) {}, true},
		{"EmptyPopulation", func(c *Config) { c.Generator.Beneficiaries, c.Generator.Transactions = 0, 0 }, true},
		{"NegativeTransactions", func(c *Config) { c.Generator.Transactions = -1 }, false},
		{"TransactionsWithoutBeneficiaries", func(c *Config) { c.Generator.Beneficiaries = 0 }, false},
		{"NegativeMaxSessions", func(c *Config) { c.Session.MaxSessions = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
