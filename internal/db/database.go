// Package db is the device-local sqlite storage of the booking agent.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the booking agent.
type DB struct {
	*sql.DB
}

// NewDB opens database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps read-modify-write of kv values ordered.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Durable key-value storage (local cart, pending inquiries)
		`CREATE TABLE IF NOT EXISTS local_kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Last schedule fetched from the backend per shop
		`CREATE TABLE IF NOT EXISTS open_hours (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			remote_id INTEGER,
			shop_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_time TEXT NOT NULL DEFAULT '',
			end_time TEXT NOT NULL DEFAULT '',
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			synced_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_open_hours_shop ON open_hours(shop_id, day_of_week)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Ping is used by the readiness check.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
