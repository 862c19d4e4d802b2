package db

import (
	"database/sql"
	"fmt"
)

// Migrate brings the schema up to date. The schema_version table records how
// many entries of migrations have been applied; each pending one runs in its
// own transaction together with the version bump.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this binary (%d)", current, len(migrations))
	}
	for i := current; i < len(migrations); i++ {
		if err := apply(db, i+1, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// SchemaVersion returns the number of applied migrations, 0 for a fresh database.
func SchemaVersion(db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(version.Int64), nil
}

func apply(db *sql.DB, version int, stmt string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}
	return tx.Commit()
}

// migrations are append-only; version N is migrations[N-1].
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS operations (
		operation_id      TEXT PRIMARY KEY,
		timestamp         TEXT NOT NULL,
		user_input        TEXT NOT NULL DEFAULT '',
		risk_level        TEXT NOT NULL
		                  CHECK(risk_level IN ('low','medium','high','critical')),
		tool_calls        TEXT NOT NULL DEFAULT '[]',
		success           INTEGER NOT NULL DEFAULT 0,
		execution_time    REAL NOT NULL DEFAULT 0,
		rollback_commands TEXT NOT NULL DEFAULT '[]',
		rolled_back       INTEGER NOT NULL DEFAULT 0,
		rolled_back_at    TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_operations_timestamp ON operations(timestamp)`,
}
