// Package db provides the SQLite connection and schema for the bridge.
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
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
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
	// Dispatch ledger - append-only history of color events sent to the hub
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dispatch_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			outcome TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			event_id TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			color TEXT NOT NULL,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_dispatch_ts ON dispatch_ledger(timestamp);
		CREATE INDEX IF NOT EXISTS idx_dispatch_entity_ts ON dispatch_ledger(entity_id, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create dispatch_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
