package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. Statements are idempotent so this is
// safe to run at every startup.
func (db *DB) RunMigrations() error {
	migration := `
-- Grouping configs: one per activity within an organization
CREATE TABLE IF NOT EXISTS group_configs (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    activity_id TEXT NOT NULL,
    name TEXT NOT NULL,
    default_criteria TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (org_id, activity_id)
);
CREATE INDEX IF NOT EXISTS idx_org_configs ON group_configs(org_id);

-- Generation runs
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    config_id TEXT NOT NULL,
    activity_id TEXT NOT NULL,
    session_id TEXT,
    scope TEXT NOT NULL CHECK(scope IN ('session', 'activity')),
    status TEXT NOT NULL CHECK(status IN ('generated', 'confirmed')),
    version INTEGER NOT NULL,
    criteria TEXT NOT NULL,
    entry_count INTEGER NOT NULL,
    group_count INTEGER NOT NULL,
    excluded_count INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    confirmed_at TIMESTAMP,
    FOREIGN KEY (config_id) REFERENCES group_configs(id)
);
CREATE INDEX IF NOT EXISTS idx_org_runs ON runs(org_id);
CREATE INDEX IF NOT EXISTS idx_activity_runs ON runs(org_id, activity_id, created_at);
CREATE INDEX IF NOT EXISTS idx_session_runs ON runs(org_id, session_id, created_at);

-- At most one confirmed run per session. Activity-scope runs stay out of the
-- index so an activity can accumulate confirmed history for variety.
CREATE UNIQUE INDEX IF NOT EXISTS idx_confirmed_session ON runs(config_id, session_id)
    WHERE status = 'confirmed' AND scope = 'session';

-- Attribute snapshots frozen at generation time
CREATE TABLE IF NOT EXISTS run_entries (
    run_id TEXT NOT NULL,
    person_id TEXT NOT NULL,
    attributes TEXT NOT NULL,
    excluded INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, person_id),
    FOREIGN KEY (run_id) REFERENCES runs(id)
);

-- Group proposals within a run
CREATE TABLE IF NOT EXISTS proposals (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    group_index INTEGER NOT NULL,
    group_name TEXT NOT NULL,
    member_ids TEXT NOT NULL,
    modified_member_ids TEXT,
    status TEXT NOT NULL CHECK(status IN ('proposed', 'accepted', 'modified')),
    version INTEGER NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_run_proposals ON proposals(run_id, group_index);

-- Who was confirmed together, appended at confirm time
CREATE TABLE IF NOT EXISTS grouping_history (
    run_id TEXT NOT NULL,
    person_a TEXT NOT NULL,
    person_b TEXT NOT NULL,
    PRIMARY KEY (run_id, person_a, person_b),
    FOREIGN KEY (run_id) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_history_people ON grouping_history(person_a, person_b);

-- API keys for authentication
CREATE TABLE IF NOT EXISTS api_keys (
    key_hash TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_used TIMESTAMP,
    description TEXT
);
CREATE INDEX IF NOT EXISTS idx_org_keys ON api_keys(org_id);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
