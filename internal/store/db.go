// Package store persists daily cluster utilization metrics in a local SQLite
// database. The database is the system of record for history and trend
// queries; the collector may additionally mirror rows to a warehouse table.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Config holds database configuration.
type Config struct {
	Path          string
	RetentionDays int
}

// DB wraps a sql.DB with retention settings.
type DB struct {
	db            *sql.DB
	retentionDays int
}

// RawDB returns the underlying *sql.DB for components that need direct access.
func (d *DB) RawDB() *sql.DB {
	return d.db
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Open creates the directory, opens the SQLite database, sets WAL mode and
// pragmas, and ensures all tables exist.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is empty")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// In WAL mode SQLite supports concurrent readers with a single writer.
	// Allow multiple connections so reads don't block behind writes.
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createTables(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	retDays := cfg.RetentionDays
	if retDays <= 0 {
		retDays = 90
	}

	d := &DB{db: sqlDB, retentionDays: retDays}

	// Run cleanup at startup so old rows are purged even if the process
	// never lives long enough for the daily collection to fire.
	if err := d.Cleanup(); err != nil {
		fmt.Fprintf(os.Stderr, "store: startup cleanup failed (non-fatal): %v\n", err)
	}

	return d, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cluster_utilization_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cluster_id TEXT NOT NULL,
			cluster_name TEXT NOT NULL,
			metric_date TEXT NOT NULL,
			cluster_type TEXT NOT NULL,
			worker_count INTEGER NOT NULL,
			potential_dbu_per_hour REAL NOT NULL,
			actual_dbu REAL NOT NULL,
			uptime_hours REAL NOT NULL,
			efficiency_score REAL NOT NULL,
			job_run_count INTEGER,
			unique_users INTEGER,
			is_oversized INTEGER NOT NULL,
			is_underutilized INTEGER NOT NULL,
			collected_at TEXT NOT NULL,
			UNIQUE(cluster_id, metric_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_utilization_date ON cluster_utilization_metrics(metric_date)`,
		`CREATE INDEX IF NOT EXISTS idx_utilization_cluster ON cluster_utilization_metrics(cluster_id, metric_date)`,

		`CREATE TABLE IF NOT EXISTS collection_runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			clusters_processed INTEGER NOT NULL,
			metrics_persisted INTEGER NOT NULL,
			message TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Cleanup deletes utilization rows and collection runs older than the
// retention window.
func (d *DB) Cleanup() error {
	dateCutoff := time.Now().AddDate(0, 0, -d.retentionDays).Format("2006-01-02")
	tsCutoff := time.Now().AddDate(0, 0, -d.retentionDays).Format(time.RFC3339)

	stmts := []struct {
		sql    string
		cutoff any
	}{
		{"DELETE FROM cluster_utilization_metrics WHERE metric_date < ?", dateCutoff},
		{"DELETE FROM collection_runs WHERE started_at < ?", tsCutoff},
	}

	for _, s := range stmts {
		if _, err := d.db.Exec(s.sql, s.cutoff); err != nil {
			return fmt.Errorf("cleanup %q: %w", s.sql[:30], err)
		}
	}
	return nil
}
