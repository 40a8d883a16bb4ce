package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrylist/backend/internal/storage/models"
)

// memPersister records ReplaceAll calls so tests can check that every store
// change reaches the durable cache.
type memPersister struct {
	mu     sync.Mutex
	last   []models.Event
	calls  int
	failed error
}

func (p *memPersister) ReplaceAll(ctx context.Context, events []models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed != nil {
		return p.failed
	}
	p.last = append([]models.Event(nil), events...)
	p.calls++
	return nil
}

func (p *memPersister) snapshot() []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Event(nil), p.last...)
}

func TestStoreAddUpdateRemove(t *testing.T) {
	p := &memPersister{}
	s := New(p)
	ctx := context.Background()

	s.Add(ctx, models.Event{ID: "a", Title: "Dentist", Date: "2026-03-10", Time: "14:00"})
	assert.Equal(t, 1, s.Len())

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "Dentist", got.Title)

	updated := got
	updated.Title = "Dentist (moved)"
	require.True(t, s.Update(ctx, updated))

	got, _ = s.Get("a")
	assert.Equal(t, "Dentist (moved)", got.Title)

	require.True(t, s.Remove(ctx, "a"))
	assert.Zero(t, s.Len())
	assert.False(t, s.Remove(ctx, "a"), "double remove reports false")

	// Every change persisted
	assert.Equal(t, 3, p.calls)
	assert.Empty(t, p.snapshot())
}

func TestStoreUpdateUnknownID(t *testing.T) {
	s := New(&memPersister{})
	assert.False(t, s.Update(context.Background(), models.Event{ID: "ghost"}))
}

func TestStoreEventsReturnsCopy(t *testing.T) {
	s := New(&memPersister{})
	ctx := context.Background()
	s.Add(ctx, models.Event{ID: "a", Title: "Dentist", Date: "2026-03-10"})

	events := s.Events()
	events[0].Title = "mutated"

	got, _ := s.Get("a")
	assert.Equal(t, "Dentist", got.Title, "callers must not be able to mutate store internals")
}

func TestStoreNotifiesListeners(t *testing.T) {
	s := New(&memPersister{})
	ctx := context.Background()

	var mu sync.Mutex
	var seen [][]models.Event
	unsub := s.OnChanged(func(events []models.Event) {
		mu.Lock()
		seen = append(seen, events)
		mu.Unlock()
	})

	s.Add(ctx, models.Event{ID: "a", Title: "One", Date: "2026-03-10"})
	s.ReplaceAll(ctx, []models.Event{
		{ID: "b", Title: "Two", Date: "2026-03-11"},
	})

	mu.Lock()
	require.Len(t, seen, 2)
	assert.Equal(t, "a", seen[0][0].ID)
	assert.Equal(t, "b", seen[1][0].ID)
	mu.Unlock()

	// Unsubscribe is idempotent and stops notifications
	unsub()
	unsub()
	s.Add(ctx, models.Event{ID: "c", Title: "Three", Date: "2026-03-12"})

	mu.Lock()
	assert.Len(t, seen, 2)
	mu.Unlock()
}

func TestStoreSurvivesPersistFailure(t *testing.T) {
	p := &memPersister{failed: errors.New("disk full")}
	s := New(p)
	ctx := context.Background()

	// The in-memory set is the source of truth; a failed cache write is
	// logged, not propagated
	s.Add(ctx, models.Event{ID: "a", Title: "Dentist", Date: "2026-03-10"})
	assert.Equal(t, 1, s.Len())
}

func TestStoreClear(t *testing.T) {
	p := &memPersister{}
	s := New(p)
	ctx := context.Background()

	s.Add(ctx, models.Event{ID: "a", Title: "One", Date: "2026-03-10"})
	s.Add(ctx, models.Event{ID: "b", Title: "Two", Date: "2026-03-11"})
	s.Clear(ctx)

	assert.Zero(t, s.Len())
	assert.Empty(t, p.snapshot())
}
