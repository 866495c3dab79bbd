package repository

// Schema definitions for the WelfareShield database.
// Compatible with both SQLite and PostgreSQL.

// schemaAlerts holds the curated anomaly alert catalogue.
// Bullets are stored as a JSON array.
const schemaAlerts = `
CREATE TABLE IF NOT EXISTS anomaly_alerts (
    id INTEGER PRIMARY KEY,
    entity TEXT NOT NULL,
    type TEXT NOT NULL,
    district TEXT,
    state TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    bullets TEXT NOT NULL,
    reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_anomaly_alerts_state ON anomaly_alerts(state);
`

const schemaWatchRules = `
CREATE TABLE IF NOT EXISTS watch_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_watch_rules_enabled ON watch_rules(enabled);
`

// schemaProfileViews is the investigation audit trail.
const schemaProfileViews = `
CREATE TABLE IF NOT EXISTS profile_views (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    request_id TEXT,
    viewed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_profile_views_session ON profile_views(session_id, viewed_at);
CREATE INDEX IF NOT EXISTS idx_profile_views_entity ON profile_views(entity_type, entity_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAlerts,
		schemaWatchRules,
		schemaProfileViews,
	}
}
