// Package domain defines the core interfaces and types for WelfareShield.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for durable data.
// Beneficiaries and transactions are never persisted; the repository only
// holds the curated alert catalogue, watch rules and the audit trail.
type Repository interface {
	// Anomaly alert catalogue
	SaveAlert(ctx context.Context, alert *AnomalyAlert) error
	ListAlerts(ctx context.Context) ([]*AnomalyAlert, error)

	// Watch rule operations
	SaveWatchRule(ctx context.Context, rule *WatchRule) error
	GetWatchRule(ctx context.Context, ruleID string) (*WatchRule, error)
	ListWatchRules(ctx context.Context) ([]*WatchRule, error)
	DeleteWatchRule(ctx context.Context, ruleID string) error

	// Audit trail
	SaveProfileView(ctx context.Context, view *ProfileView) error
	ListProfileViews(ctx context.Context, sessionID string, limit int) ([]*ProfileView, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgresPort"`
	PostgresUser     string `json:"postgresUser" yaml:"postgresUser"`
	PostgresPassword string `json:"-" yaml:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" yaml:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}
