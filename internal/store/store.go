// Package store holds the in-session event set for the current user.
package store

import (
	"context"
	"log"
	"sync"

	"github.com/berrylist/backend/internal/storage/models"
)

// Persister is the durable local cache backing the store, so the event set
// survives restarts and is available offline. Persistence is best-effort:
// failures are logged, never propagated to the caller.
type Persister interface {
	ReplaceAll(ctx context.Context, events []models.Event) error
}

// ChangedFunc receives the full event set after every change.
type ChangedFunc func(events []models.Event)

// Store is the in-session authoritative event list. Every mutation swaps
// the slice wholesale rather than editing in place, so snapshots handed out
// earlier are never corrupted mid-iteration.
type Store struct {
	mu        sync.RWMutex
	events    []models.Event
	persister Persister
	listeners map[int]ChangedFunc
	nextID    int
}

// New creates an empty store. persister may be nil for a cache-less store.
func New(persister Persister) *Store {
	return &Store{
		persister: persister,
		listeners: make(map[int]ChangedFunc),
	}
}

// Events returns a copy of the current event set, sorted by date.
func (s *Store) Events() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Event(nil), s.events...)
}

// Get returns the event with the given id.
func (s *Store) Get(id string) (models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.ID == id {
			return e, true
		}
	}
	return models.Event{}, false
}

// Len returns the number of events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// OnChanged registers a change callback and returns a function removing it.
func (s *Store) OnChanged(fn ChangedFunc) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// ReplaceAll assigns a new event set in a single swap, persists it, and
// notifies listeners. Merge results enter the store through here.
func (s *Store) ReplaceAll(ctx context.Context, events []models.Event) {
	next := append([]models.Event(nil), events...)
	models.SortEvents(next)
	s.swap(ctx, next)
}

// Clear empties the store, used on sign-out.
func (s *Store) Clear(ctx context.Context) {
	s.swap(ctx, nil)
}

// Add appends one event.
func (s *Store) Add(ctx context.Context, event models.Event) {
	s.mu.RLock()
	next := make([]models.Event, 0, len(s.events)+1)
	next = append(next, s.events...)
	s.mu.RUnlock()

	next = append(next, event)
	models.SortEvents(next)
	s.swap(ctx, next)
}

// Update replaces the event with a matching id. Returns false if absent.
func (s *Store) Update(ctx context.Context, event models.Event) bool {
	s.mu.RLock()
	next := append([]models.Event(nil), s.events...)
	s.mu.RUnlock()

	found := false
	for i := range next {
		if next[i].ID == event.ID {
			next[i] = event
			found = true
			break
		}
	}
	if !found {
		return false
	}

	models.SortEvents(next)
	s.swap(ctx, next)
	return true
}

// Remove deletes the event with the given id. Returns false if absent.
func (s *Store) Remove(ctx context.Context, id string) bool {
	s.mu.RLock()
	current := s.events
	s.mu.RUnlock()

	next := make([]models.Event, 0, len(current))
	found := false
	for _, e := range current {
		if e.ID == id {
			found = true
			continue
		}
		next = append(next, e)
	}
	if !found {
		return false
	}

	s.swap(ctx, next)
	return true
}

// swap installs the new slice, persists it, and notifies listeners with a
// copy so callbacks cannot mutate the store's own slice.
func (s *Store) swap(ctx context.Context, next []models.Event) {
	s.mu.Lock()
	s.events = next
	fns := make([]ChangedFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.ReplaceAll(ctx, next); err != nil {
			log.Printf("Could not persist event cache: %v", err)
		}
	}

	for _, fn := range fns {
		fn(append([]models.Event(nil), next...))
	}
}
