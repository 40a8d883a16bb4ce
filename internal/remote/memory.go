package remote

import (
	"context"
	"sync"
	"time"

	"github.com/berrylist/backend/internal/storage/models"
)

// MemoryStore is an in-process Store used by tests and local development.
// It keeps per-user collections in memory and fans snapshots out to
// subscribers on every write, mimicking the realtime service's push
// behavior.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[string]map[string]models.Event
	subscribers map[string]map[int]SnapshotFunc
	nextSubID   int

	// Fail makes every operation return ErrUnavailable, for exercising
	// offline and retry paths.
	Fail bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]map[string]models.Event),
		subscribers: make(map[string]map[int]SnapshotFunc),
	}
}

// SetFail toggles simulated unavailability.
func (s *MemoryStore) SetFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fail = fail
}

func (s *MemoryStore) partition(userID string) map[string]models.Event {
	events, ok := s.users[userID]
	if !ok {
		events = make(map[string]models.Event)
		s.users[userID] = events
	}
	return events
}

func (s *MemoryStore) snapshotLocked(userID string) Snapshot {
	var events []models.Event
	for _, e := range s.users[userID] {
		events = append(events, e)
	}
	models.SortEvents(events)
	return Snapshot{Events: events}
}

// notifyLocked delivers the current snapshot to every subscriber of the
// user's partition. Callbacks run outside the lock.
func (s *MemoryStore) notifyLocked(userID string) {
	snap := s.snapshotLocked(userID)
	var fns []SnapshotFunc
	for _, fn := range s.subscribers[userID] {
		fns = append(fns, fn)
	}
	go func() {
		for _, fn := range fns {
			fn(snap)
		}
	}()
}

// ReadAll implements Store.
func (s *MemoryStore) ReadAll(ctx context.Context, userID string) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return nil, ErrUnavailable
	}
	return s.snapshotLocked(userID).Events, nil
}

// WriteAll implements Store.
func (s *MemoryStore) WriteAll(ctx context.Context, userID string, events []models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrUnavailable
	}

	now := time.Now()
	partition := make(map[string]models.Event, len(events))
	for _, e := range events {
		e.Stamp(now)
		partition[e.ID] = e
	}
	s.users[userID] = partition
	s.notifyLocked(userID)
	return nil
}

// WriteOne implements Store.
func (s *MemoryStore) WriteOne(ctx context.Context, userID string, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrUnavailable
	}

	s.partition(userID)[event.ID] = event
	s.notifyLocked(userID)
	return nil
}

// UpdateOne implements Store.
func (s *MemoryStore) UpdateOne(ctx context.Context, userID string, event models.Event) error {
	return s.WriteOne(ctx, userID, event)
}

// DeleteOne implements Store.
func (s *MemoryStore) DeleteOne(ctx context.Context, userID string, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrUnavailable
	}

	delete(s.partition(userID), eventID)
	s.notifyLocked(userID)
	return nil
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe(ctx context.Context, userID string, onSnapshot SnapshotFunc, onError ErrorFunc) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return nil, ErrUnavailable
	}

	subs, ok := s.subscribers[userID]
	if !ok {
		subs = make(map[int]SnapshotFunc)
		s.subscribers[userID] = subs
	}

	id := s.nextSubID
	s.nextSubID++
	subs[id] = onSnapshot

	return &memorySubscription{store: s, userID: userID, id: id}, nil
}

// Push injects a snapshot into the partition as if another client had
// written it, then notifies subscribers. Test helper.
func (s *MemoryStore) Push(userID string, events []models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition := make(map[string]models.Event, len(events))
	for _, e := range events {
		partition[e.ID] = e
	}
	s.users[userID] = partition
	s.notifyLocked(userID)
}

// SubscriberCount reports active subscriptions for a user. Test helper.
func (s *MemoryStore) SubscriberCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers[userID])
}

type memorySubscription struct {
	store  *MemoryStore
	userID string
	id     int
	once   sync.Once
}

// Unsubscribe implements Subscription. Safe to call multiple times.
func (sub *memorySubscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.store.mu.Lock()
		defer sub.store.mu.Unlock()
		delete(sub.store.subscribers[sub.userID], sub.id)
	})
}
