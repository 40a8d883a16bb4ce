package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/berrylist/backend/internal/storage/models"
)

// EventCacheRepository persists the last known event set so the calendar
// keeps working offline and across restarts. The remote store stays the
// durable source of truth; this table is only an offline fallback.
type EventCacheRepository struct {
	BaseRepository
}

// NewEventCacheRepository creates a new event cache repository.
func NewEventCacheRepository(db *DB) *EventCacheRepository {
	return &EventCacheRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// ReplaceAll swaps the cached event set for the given one in a single
// transaction, so a crash mid-write never leaves a half-merged cache.
func (r *EventCacheRepository) ReplaceAll(ctx context.Context, events []models.Event) error {
	return r.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM event_cache"); err != nil {
			return fmt.Errorf("clearing event cache: %w", err)
		}

		for _, e := range events {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO event_cache (
					id, title, date, time, description, type, icon, color, completed, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				e.ID, e.Title, e.Date, e.Time, e.Description,
				e.Type, e.Icon, e.Color, e.Completed, e.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("caching event %s: %w", e.ID, err)
			}
		}

		return nil
	})
}

// LoadAll returns the cached event set sorted by date.
func (r *EventCacheRepository) LoadAll(ctx context.Context) ([]models.Event, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, title, date, time, description, type, icon, color, completed, updated_at
		FROM event_cache
		ORDER BY date, time, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying event cache: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Date, &e.Time, &e.Description,
			&e.Type, &e.Icon, &e.Color, &e.Completed, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning cached event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Clear drops the cache, used on sign-out so the next session starts empty.
func (r *EventCacheRepository) Clear(ctx context.Context) error {
	if _, err := r.DB().ExecContext(ctx, "DELETE FROM event_cache"); err != nil {
		return fmt.Errorf("clearing event cache: %w", err)
	}
	return nil
}
