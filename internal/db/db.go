// Package db provides the database connection and schema for lightctl.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Operation ledger - append-only history of bridge operations
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS operation_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			op_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			target TEXT NOT NULL,
			success INTEGER NOT NULL,
			error_type TEXT,
			message TEXT,
			payload TEXT,
			timestamp INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_oplog_ts ON operation_ledger(timestamp);
		CREATE INDEX IF NOT EXISTS idx_oplog_target_ts ON operation_ledger(target, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create operation_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
