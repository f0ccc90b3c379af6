package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	tables := []string{
		"group_configs",
		"runs",
		"run_entries",
		"proposals",
		"grouping_history",
		"api_keys",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}
}

// TestMigrationsIdempotent verifies that migrations can run twice
func TestMigrationsIdempotent(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.RunMigrations())
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")
}

// TestConfirmedSessionIndex verifies the partial unique index: only one
// confirmed run per session, while activity-scope runs stack freely.
func TestConfirmedSessionIndex(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO group_configs (id, org_id, activity_id, name, created_at, updated_at)
		 VALUES ('c1', 'org1', 'act1', 'Config', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	insertRun := func(id, sessionID, scope, status string) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO runs (id, org_id, config_id, activity_id, session_id, scope, status,
			                  version, criteria, entry_count, group_count, excluded_count, created_at)
			VALUES (?, 'org1', 'c1', 'act1', ?, ?, ?, 1, '{}', 0, 0, 0, CURRENT_TIMESTAMP)`,
			id, sessionID, scope, status)
		return err
	}

	require.NoError(t, insertRun("r1", "s1", "session", "confirmed"))
	// Second confirmed run for the same session violates the index.
	require.Error(t, insertRun("r2", "s1", "session", "confirmed"))
	// A generated run for the same session is fine.
	require.NoError(t, insertRun("r3", "s1", "session", "generated"))
	// Activity-scope confirmed runs are allowed to accumulate.
	require.NoError(t, insertRun("r4", "", "activity", "confirmed"))
	require.NoError(t, insertRun("r5", "", "activity", "confirmed"))
}

// TestConfigUniquePerActivity verifies one config per (org, activity)
func TestConfigUniquePerActivity(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	insert := func(id, orgID, activityID string) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO group_configs (id, org_id, activity_id, name, created_at, updated_at)
			 VALUES (?, ?, ?, 'Config', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
			id, orgID, activityID)
		return err
	}

	require.NoError(t, insert("c1", "org1", "act1"))
	require.Error(t, insert("c2", "org1", "act1"))
	// Same activity id under another org is a separate namespace.
	require.NoError(t, insert("c3", "org2", "act1"))
}
