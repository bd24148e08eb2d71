// Package sqlite provides SQLite-based persistent storage for DriftWatch.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/driftwatch.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "driftwatch.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Registered models and their lifecycle state
		`CREATE TABLE IF NOT EXISTS models (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			version          TEXT NOT NULL,
			source_repo      TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL,
			error            TEXT NOT NULL DEFAULT '',
			endpoint_predict TEXT NOT NULL DEFAULT '',
			endpoint_info    TEXT NOT NULL DEFAULT '',
			endpoint_health  TEXT NOT NULL DEFAULT '',
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_models_status ON models(status)`,

		// Append-only inference log. Filterable columns are lifted out
		// of the JSON payload for indexed queries.
		`CREATE TABLE IF NOT EXISTS inference_logs (
			id        TEXT PRIMARY KEY,
			model_id  TEXT NOT NULL,
			status    TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			payload   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_model_ts ON inference_logs(model_id, timestamp)`,

		// One baseline per model, replaced on redeploy
		`CREATE TABLE IF NOT EXISTS baselines (
			model_id     TEXT PRIMARY KEY,
			version      TEXT NOT NULL DEFAULT '',
			sample_count INTEGER NOT NULL,
			source       TEXT NOT NULL DEFAULT '',
			stats        TEXT NOT NULL,
			created_at   INTEGER NOT NULL
		)`,

		// Drift reports, pruned by retention policy
		`CREATE TABLE IF NOT EXISTS drift_reports (
			id        TEXT PRIMARY KEY,
			model_id  TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			detected  BOOLEAN NOT NULL,
			severity  TEXT NOT NULL,
			payload   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_model_ts ON drift_reports(model_id, timestamp)`,

		// At most one active alert per model
		`CREATE TABLE IF NOT EXISTS drift_alerts (
			model_id  TEXT PRIMARY KEY,
			id        TEXT NOT NULL,
			report_id TEXT NOT NULL,
			severity  TEXT NOT NULL,
			features  TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
