// Package remote adapts event operations to the per-user keyed collection
// held by the realtime store service. Every operation is partitioned under
// users/{userID}/events and may not touch another user's data.
package remote

import (
	"context"
	"errors"

	"github.com/berrylist/backend/internal/storage/models"
)

var (
	// ErrNotAuthenticated is returned when a remote operation is attempted
	// without a signed-in user. Callers queue the mutation instead of
	// failing the user action.
	ErrNotAuthenticated = errors.New("remote: not authenticated")

	// ErrUnavailable is returned on network or service failure. Callers
	// queue the mutation or skip the merge; the error is logged, never
	// surfaced as a blocking failure.
	ErrUnavailable = errors.New("remote: store unavailable")
)

// Snapshot is the full current event collection for one user, as delivered
// by reads and push notifications. A snapshot is an authoritative
// replacement, not a delta: an event absent from it no longer exists
// remotely.
type Snapshot struct {
	Events []models.Event
}

// SnapshotFunc receives pushed snapshots.
type SnapshotFunc func(Snapshot)

// ErrorFunc receives subscription delivery errors.
type ErrorFunc func(error)

// Subscription is a handle to an active push subscription.
// Unsubscribe must be safe to call multiple times.
type Subscription interface {
	Unsubscribe()
}

// Store is the remote per-user event collection.
type Store interface {
	// ReadAll returns the user's full event collection, empty if none.
	ReadAll(ctx context.Context, userID string) ([]models.Event, error)

	// WriteAll replaces the user's full collection, stamping each event
	// with a fresh updatedAt.
	WriteAll(ctx context.Context, userID string, events []models.Event) error

	// WriteOne creates a single event record.
	WriteOne(ctx context.Context, userID string, event models.Event) error

	// UpdateOne overwrites a single event record.
	UpdateOne(ctx context.Context, userID string, event models.Event) error

	// DeleteOne removes a single event record.
	DeleteOne(ctx context.Context, userID string, eventID string) error

	// Subscribe registers for pushed snapshots of the user's collection.
	// The current collection is delivered on every remote change.
	Subscribe(ctx context.Context, userID string, onSnapshot SnapshotFunc, onError ErrorFunc) (Subscription, error)
}
