package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopvisit/internal/kv"
)

var _ kv.Storage = (*DB)(nil)

// Get returns the value stored under key or kv.ErrNotFound.
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, "SELECT value FROM local_kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (db *DB) Set(ctx context.Context, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO local_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (db *DB) Remove(ctx context.Context, key string) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM local_kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
