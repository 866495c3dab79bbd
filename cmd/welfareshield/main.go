// WelfareShield - Welfare risk intelligence for field investigators.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/welfareshield/internal/api"
	"github.com/opensource-finance/welfareshield/internal/bus"
	"github.com/opensource-finance/welfareshield/internal/cache"
	"github.com/opensource-finance/welfareshield/internal/domain"
	"github.com/opensource-finance/welfareshield/internal/repository"
	"github.com/opensource-finance/welfareshield/internal/rules"
	"github.com/opensource-finance/welfareshield/internal/session"
	"github.com/opensource-finance/welfareshield/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting welfareshield",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"edition", cfg.Edition,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"beneficiaries", cfg.Generator.Beneficiaries,
		"transactions", cfg.Generator.Transactions,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize watch rule engine
	engine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load watch rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Session snapshots
	sessions := session.NewManager(session.Config{
		Generator:   cfg.Generator,
		ScoreTTL:    cfg.Cache.ScoreTTL,
		MaxSessions: cfg.Session.MaxSessions,
	}, session.Deps{
		Cache:  cacheImpl,
		Bus:    busImpl,
		Watch:  engine,
		Tracer: cfg.Tracing.Tracer("resolver"),
	})

	// Audit worker
	auditWorker := worker.NewWorker(busImpl, repo)
	if err := auditWorker.Start(); err != nil {
		slog.Error("failed to start audit worker", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(cfg.Server, cfg.Tracing.Tracer("api"), sessions, repo, cacheImpl, busImpl, engine, Version)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("welfareshield is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if err := auditWorker.Stop(); err != nil {
		slog.Error("failed to stop audit worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("welfareshield shutdown complete")
}

// loadConfig picks the edition defaults, overlays WELFARESHIELD_CONFIG and
// then the WELFARESHIELD_* environment.
func loadConfig() (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if os.Getenv("WELFARESHIELD_EDITION") == string(domain.EditionPro) {
		cfg = domain.ProConfig()
	}

	if path := os.Getenv("WELFARESHIELD_CONFIG"); path != "" {
		if err := domain.LoadConfigFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := domain.ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if os.Getenv("WELFARESHIELD_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadRulesFromDatabase loads watch rules into the engine, seeding the
// builtin set into an empty database first.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListWatchRules(ctx)
	if err != nil {
		slog.Warn("failed to list watch rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) == 0 {
		slog.Info("no watch rules in database - seeding builtin rules")
		dbRules = rules.BuiltinRules()
		for _, rule := range dbRules {
			if err := repo.SaveWatchRule(ctx, rule); err != nil {
				return fmt.Errorf("seed watch rule %s: %w", rule.ID, err)
			}
		}
	}

	slog.Info("loading watch rules", "count", len(dbRules))
	return engine.LoadRules(dbRules)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  WelfareShield - welfare risk intelligence")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Edition:  %s\n", cfg.Edition)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints (X-Session-ID required):")
	fmt.Println("    GET  /kpis                        - Dashboard headline figures")
	fmt.Println("    GET  /beneficiaries               - Filtered beneficiary list")
	fmt.Println("    GET  /transactions                - Flagged transactions")
	fmt.Println("    GET  /profile/{entityType}/{id}   - Investigation profile")
	fmt.Println("    GET  /risk-trend                  - Monthly risk index")
	fmt.Println("    GET  /regions                     - Per-state summaries")
	fmt.Println("    GET  /anomaly-alerts              - Curated alert catalogue")
	fmt.Println("    POST /session/reset               - Regenerate the session")
	fmt.Println("    GET  /rules                       - List watch rules")
	fmt.Println("    POST /rules/reload                - Hot-reload watch rules")
	fmt.Println("    GET  /health                      - Health check")
	fmt.Println("    GET  /metrics                     - Prometheus metrics")
	fmt.Println()
}
