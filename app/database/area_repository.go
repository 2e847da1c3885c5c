package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type AreaRepository struct {
	db *DB
}

func NewAreaRepository(db *DB) *AreaRepository {
	return &AreaRepository{db: db}
}

// Get returns the freshness record for an area, or nil if the area has
// never been refreshed.
func (r *AreaRepository) Get(areaKey string) (*AreaFreshness, error) {
	var a AreaFreshness
	err := r.db.QueryRow(`
		SELECT area_key, status, last_refreshed_at, last_attempt_at, error_count, created_at, updated_at
		FROM area_freshness WHERE area_key = ?`, areaKey,
	).Scan(&a.AreaKey, &a.Status, &a.LastRefreshedAt, &a.LastAttemptAt, &a.ErrorCount, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return &a, nil
}

// MarkRefreshing records that a refresh attempt has started.
func (r *AreaRepository) MarkRefreshing(areaKey string, now time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO area_freshness (area_key, status, last_attempt_at)
		VALUES (?, ?, ?)
		ON CONFLICT (area_key) DO UPDATE SET
			status = excluded.status,
			last_attempt_at = excluded.last_attempt_at,
			updated_at = CURRENT_TIMESTAMP`,
		areaKey, StatusRefreshing, now)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// MarkSucceeded stamps a successful refresh and clears the error streak.
func (r *AreaRepository) MarkSucceeded(areaKey string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE area_freshness SET
			status = ?,
			last_refreshed_at = ?,
			error_count = 0,
			updated_at = CURRENT_TIMESTAMP
		WHERE area_key = ?`,
		StatusIdle, now, areaKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// MarkFailed records a failed attempt. The previous last_refreshed_at is
// kept so stale data can still be served.
func (r *AreaRepository) MarkFailed(areaKey string) error {
	_, err := r.db.Exec(`
		UPDATE area_freshness SET
			status = ?,
			error_count = error_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE area_key = ?`,
		StatusFailed, areaKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
