package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	database, err := OpenDB(":memory:")
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, Migrate(database))
	require.NoError(t, Migrate(database))

	var name string
	err = database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'operations'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "operations", name)

	version, err := SchemaVersion(database)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestMigrateAppliesOnlyPendingVersions(t *testing.T) {
	database, err := OpenDB(":memory:")
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec(`DROP INDEX idx_operations_timestamp`)
	require.NoError(t, err)
	require.NoError(t, Migrate(database))

	var count int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_operations_timestamp'`).Scan(&count))
	assert.Zero(t, count, "applied migrations are not re-run")

	_, err = database.Exec(`UPDATE schema_version SET version = ?`, len(migrations)+1)
	require.NoError(t, err)
	assert.Error(t, Migrate(database))
}

func TestOpenDBCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	database, err := OpenDB(path)
	require.NoError(t, err)
	defer database.Close()

	var mode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestRiskLevelConstraint(t *testing.T) {
	database, err := OpenDB(":memory:")
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec(`INSERT INTO operations (operation_id, timestamp, risk_level) VALUES ('op_1', 'now', 'extreme')`)
	assert.Error(t, err)
}
