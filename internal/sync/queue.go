// Package sync orchestrates offline/online synchronization between the
// local event store and the remote per-user collection: the durable mutation
// queue, connectivity and session tracking, periodic and push-driven
// reconciliation, and the last-write-wins merge.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/berrylist/backend/internal/storage"
	"github.com/berrylist/backend/internal/storage/models"
)

// ErrStorageFull marks a failed queue persist. The enqueue is best-effort:
// the mutation may be lost, which is logged and reflected in the sync
// status rather than thrown at the user.
var ErrStorageFull = errors.New("sync: queue persistence failed")

// Queue is the durable FIFO of mutations waiting for the remote store.
// It does no retrying of its own; drain orchestration belongs to the
// Manager.
type Queue struct {
	repo *storage.QueueRepository
}

// NewQueue creates a queue over its durable repository.
func NewQueue(repo *storage.QueueRepository) *Queue {
	return &Queue{repo: repo}
}

// Enqueue appends a mutation. Fire-and-forget: the caller's user action has
// already succeeded locally, so a persistence failure is logged and reported
// through the returned error for status accounting, never surfaced to the
// user.
func (q *Queue) Enqueue(ctx context.Context, op string, payload *models.Event, targetEventID string) error {
	entry := models.QueueEntry{
		QueueID:   storage.GenerateID(),
		Timestamp: q.repo.Now(),
		Op:        op,
		Payload:   payload,
		EventID:   targetEventID,
	}

	if err := q.repo.Append(ctx, entry); err != nil {
		log.Printf("Could not persist queued %s: %v", op, err)
		return fmt.Errorf("%w: %v", ErrStorageFull, err)
	}

	return nil
}

// DequeueSucceeded removes one entry after its remote write was confirmed.
func (q *Queue) DequeueSucceeded(ctx context.Context, queueID string) error {
	return q.repo.Remove(ctx, queueID)
}

// Pending returns all queued entries in FIFO order.
func (q *Queue) Pending(ctx context.Context) ([]models.QueueEntry, error) {
	return q.repo.List(ctx)
}

// PendingIDs returns the set of event ids with a queued mutation.
func (q *Queue) PendingIDs(ctx context.Context) (map[string]bool, error) {
	entries, err := q.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if id := entry.TargetID(); id != "" {
			ids[id] = true
		}
	}
	return ids, nil
}

// Len returns the number of pending entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.repo.Count(ctx)
}

// Clear drops all entries, used on sign-out so one user's staged mutations
// can never replay into another user's partition.
func (q *Queue) Clear(ctx context.Context) error {
	return q.repo.Clear(ctx)
}
