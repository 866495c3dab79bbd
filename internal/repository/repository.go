// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-finance/welfareshield/internal/domain"
	"github.com/opensource-finance/welfareshield/internal/generator"
)

// DefaultViewLimit caps ListProfileViews when no limit is given.
const DefaultViewLimit = 50

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// New creates a new repository based on configuration.
// The alert catalogue is seeded on first migration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
		now:    func() time.Time { return time.Now().UTC() },
	}

	ctx := context.Background()
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := repo.seedAlerts(ctx, generator.AnomalyAlerts()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed anomaly alerts: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

// seedAlerts inserts the curated catalogue when the table is empty.
func (r *SQLRepository) seedAlerts(ctx context.Context, alerts []domain.AnomalyAlert) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anomaly_alerts`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range alerts {
		if err := r.insertAlert(ctx, tx, &alerts[i]); err != nil {
			return fmt.Errorf("alert %d: %w", alerts[i].ID, err)
		}
	}
	return tx.Commit()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLRepository) insertAlert(ctx context.Context, db execer, alert *domain.AnomalyAlert) error {
	bullets, err := json.Marshal(alert.Bullets)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO anomaly_alerts (
			id, entity, type, district, state, risk_score, bullets, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entity = excluded.entity,
			type = excluded.type,
			district = excluded.district,
			state = excluded.state,
			risk_score = excluded.risk_score,
			bullets = excluded.bullets,
			reason = excluded.reason
	`

	_, err = db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.Entity, alert.Type, alert.District, alert.State,
		alert.RiskScore, string(bullets), alert.Reason,
	)
	return err
}

// SaveAlert inserts or replaces a catalogue entry.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.AnomalyAlert) error {
	if alert == nil || alert.ID <= 0 {
		return fmt.Errorf("%w: alert id must be positive", domain.ErrInvalidInput)
	}
	if alert.Entity == "" {
		return fmt.Errorf("%w: alert entity is required", domain.ErrInvalidInput)
	}
	return r.insertAlert(ctx, r.db, alert)
}

// ListAlerts returns the catalogue ordered by id.
func (r *SQLRepository) ListAlerts(ctx context.Context) ([]*domain.AnomalyAlert, error) {
	query := `
		SELECT id, entity, type, district, state, risk_score, bullets, reason
		FROM anomaly_alerts
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.AnomalyAlert
	for rows.Next() {
		var a domain.AnomalyAlert
		var district sql.NullString
		var bullets string

		if err := rows.Scan(
			&a.ID, &a.Entity, &a.Type, &district, &a.State,
			&a.RiskScore, &bullets, &a.Reason,
		); err != nil {
			return nil, err
		}

		a.District = district.String
		if err := json.Unmarshal([]byte(bullets), &a.Bullets); err != nil {
			return nil, fmt.Errorf("failed to parse bullets for alert %d: %w", a.ID, err)
		}
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// SaveWatchRule inserts or updates a watch rule. CreatedAt survives updates.
func (r *SQLRepository) SaveWatchRule(ctx context.Context, rule *domain.WatchRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", domain.ErrInvalidInput)
	}
	if rule.Expression == "" {
		return fmt.Errorf("%w: rule expression is required", domain.ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := r.now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO watch_rules (
			id, name, description, expression, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression, enabled,
		rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// GetWatchRule retrieves a watch rule by id, enabled or not.
func (r *SQLRepository) GetWatchRule(ctx context.Context, ruleID string) (*domain.WatchRule, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("%w: rule id is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, expression, enabled, created_at, updated_at
		FROM watch_rules
		WHERE id = ?
	`

	rule, err := scanWatchRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: watch rule %s", domain.ErrNotFound, ruleID)
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListWatchRules retrieves all enabled watch rules ordered by name.
func (r *SQLRepository) ListWatchRules(ctx context.Context) ([]*domain.WatchRule, error) {
	query := `
		SELECT id, name, description, expression, enabled, created_at, updated_at
		FROM watch_rules
		WHERE enabled = 1
		ORDER BY name, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.WatchRule
	for rows.Next() {
		rule, err := scanWatchRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// DeleteWatchRule soft-deletes a watch rule by setting enabled = 0.
func (r *SQLRepository) DeleteWatchRule(ctx context.Context, ruleID string) error {
	if ruleID == "" {
		return fmt.Errorf("%w: rule id is required", domain.ErrInvalidInput)
	}

	query := `
		UPDATE watch_rules
		SET enabled = 0, updated_at = ?
		WHERE id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), r.now(), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: watch rule %s", domain.ErrNotFound, ruleID)
	}

	return nil
}

// SaveProfileView appends one entry to the audit trail.
func (r *SQLRepository) SaveProfileView(ctx context.Context, view *domain.ProfileView) error {
	if view == nil || view.ID == "" {
		return fmt.Errorf("%w: view id is required", domain.ErrInvalidInput)
	}
	if view.SessionID == "" {
		return fmt.Errorf("%w: sessionID is required", domain.ErrInvalidInput)
	}
	if view.ViewedAt.IsZero() {
		view.ViewedAt = r.now()
	}

	query := `
		INSERT INTO profile_views (
			id, session_id, entity_type, entity_id, risk_score, request_id, viewed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		view.ID, view.SessionID, string(view.EntityType), view.EntityID,
		view.RiskScore, view.RequestID, view.ViewedAt.UTC(),
	)
	return err
}

// ListProfileViews returns a session's most recent views, newest first.
func (r *SQLRepository) ListProfileViews(ctx context.Context, sessionID string, limit int) ([]*domain.ProfileView, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionID is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultViewLimit
	}

	query := `
		SELECT id, session_id, entity_type, entity_id, risk_score, request_id, viewed_at
		FROM profile_views
		WHERE session_id = ?
		ORDER BY viewed_at DESC, id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*domain.ProfileView
	for rows.Next() {
		var v domain.ProfileView
		var entityType string
		var requestID sql.NullString

		if err := rows.Scan(
			&v.ID, &v.SessionID, &entityType, &v.EntityID,
			&v.RiskScore, &requestID, &v.ViewedAt,
		); err != nil {
			return nil, err
		}

		v.EntityType = domain.EntityType(entityType)
		v.RequestID = requestID.String
		views = append(views, &v)
	}

	return views, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatchRule(row rowScanner) (*domain.WatchRule, error) {
	var rule domain.WatchRule
	var description sql.NullString
	var enabled int

	if err := row.Scan(
		&rule.ID, &rule.Name, &description, &rule.Expression,
		&enabled, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Enabled = enabled == 1
	return &rule, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
