package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shopvisit/internal/model"
)

// SaveOpenHours replaces the mirrored schedule of a shop.
func (db *DB) SaveOpenHours(ctx context.Context, shopID string, entries []model.OpenHourEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM open_hours WHERE shop_id = ?", shopID); err != nil {
		return fmt.Errorf("clear open hours: %w", err)
	}

	now := time.Now()
	for _, e := range entries {
		var remoteID sql.NullInt64
		if e.ID != 0 {
			remoteID = sql.NullInt64{Int64: e.ID, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO open_hours (remote_id, shop_id, day_of_week, start_time, end_time, is_closed, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			remoteID, shopID, int(e.DayOfWeek), e.StartTime, e.EndTime, e.IsClosed, now,
		)
		if err != nil {
			return fmt.Errorf("insert open hours for shop %s day %d: %w", shopID, e.DayOfWeek, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO local_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		syncMarkerKey(shopID), []byte(now.Format(time.RFC3339)), now,
	)
	if err != nil {
		return fmt.Errorf("mark shop %s synced: %w", shopID, err)
	}
	return tx.Commit()
}

// ListOpenHours returns the mirrored schedule and whether the shop was ever synced.
func (db *DB) ListOpenHours(ctx context.Context, shopID string) ([]model.OpenHourEntry, bool, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT remote_id, shop_id, day_of_week, start_time, end_time, is_closed
		FROM open_hours
		WHERE shop_id = ?
		ORDER BY day_of_week, start_time`,
		shopID,
	)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var entries []model.OpenHourEntry
	for rows.Next() {
		var e model.OpenHourEntry
		var remoteID sql.NullInt64
		var day int
		if err := rows.Scan(&remoteID, &e.ShopID, &day, &e.StartTime, &e.EndTime, &e.IsClosed); err != nil {
			return nil, false, err
		}
		if remoteID.Valid {
			e.ID = remoteID.Int64
		}
		e.DayOfWeek = model.Weekday(day)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	rows.Close()
	if len(entries) > 0 {
		return entries, true, nil
	}

	// An empty schedule is still a valid sync result.
	synced, err := db.shopSynced(ctx, shopID)
	return nil, synced, err
}

func (db *DB) shopSynced(ctx context.Context, shopID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM local_kv WHERE key = ?", syncMarkerKey(shopID),
	).Scan(&count)
	return count > 0, err
}

func syncMarkerKey(shopID string) string {
	return "open_hours_synced:" + shopID
}
