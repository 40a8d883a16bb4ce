package storage

import (
	"context"
	"fmt"

	"github.com/berrylist/backend/internal/storage/models"
)

// QueueRepository persists the sync queue: the durable FIFO of mutations
// waiting to be replayed against the remote store. Entries survive restarts
// and are removed only after the corresponding remote write succeeds.
type QueueRepository struct {
	BaseRepository
}

// NewQueueRepository creates a new sync queue repository.
func NewQueueRepository(db *DB) *QueueRepository {
	return &QueueRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Append adds an entry at the tail of the queue.
func (r *QueueRepository) Append(ctx context.Context, entry models.QueueEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid queue entry: %w", err)
	}

	payload, err := entry.MarshalPayload()
	if err != nil {
		return fmt.Errorf("encoding queue payload: %w", err)
	}

	_, err = r.DB().ExecContext(ctx, `
		INSERT INTO sync_queue (queue_id, position, timestamp, op, event_id, payload)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM sync_queue), ?, ?, ?, ?)
	`, entry.QueueID, entry.Timestamp, entry.Op, entry.EventID, payload)

	if err != nil {
		return fmt.Errorf("appending queue entry: %w", err)
	}

	return nil
}

// List returns all pending entries in FIFO order.
func (r *QueueRepository) List(ctx context.Context) ([]models.QueueEntry, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT queue_id, timestamp, op, event_id, payload
		FROM sync_queue
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sync queue: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var entry models.QueueEntry
		var payload []byte
		if err := rows.Scan(&entry.QueueID, &entry.Timestamp, &entry.Op, &entry.EventID, &payload); err != nil {
			return nil, fmt.Errorf("scanning queue entry: %w", err)
		}
		if err := entry.UnmarshalPayload(payload); err != nil {
			return nil, fmt.Errorf("decoding queue payload %s: %w", entry.QueueID, err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Remove deletes one entry after its remote write was confirmed.
func (r *QueueRepository) Remove(ctx context.Context, queueID string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM sync_queue WHERE queue_id = ?", queueID)
	if err != nil {
		return fmt.Errorf("removing queue entry: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("queue entry not found: %s", queueID)
	}

	return nil
}

// Count returns the number of pending entries.
func (r *QueueRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting queue entries: %w", err)
	}
	return n, nil
}

// Clear drops the whole queue, used on sign-out.
func (r *QueueRepository) Clear(ctx context.Context) error {
	if _, err := r.DB().ExecContext(ctx, "DELETE FROM sync_queue"); err != nil {
		return fmt.Errorf("clearing sync queue: %w", err)
	}
	return nil
}
