package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrylist/backend/internal/auth"
	"github.com/berrylist/backend/internal/remote"
	"github.com/berrylist/backend/internal/storage"
	"github.com/berrylist/backend/internal/storage/models"
	"github.com/berrylist/backend/internal/store"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

type harness struct {
	manager *Manager
	store   *store.Store
	queue   *Queue
	remote  *remote.MemoryStore
	session *auth.SessionProvider
	monitor *StaticMonitor
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(db))

	cacheRepo := storage.NewEventCacheRepository(db)
	queueRepo := storage.NewQueueRepository(db)
	settingsRepo := storage.NewSettingsRepository(db)

	h := &harness{
		store:   store.New(cacheRepo),
		queue:   NewQueue(queueRepo),
		remote:  remote.NewMemoryStore(),
		session: auth.NewSessionProvider(),
		monitor: NewStaticMonitor(online),
	}
	// Long poll interval: tests drive reconciliation through transitions,
	// not the timer.
	h.manager = NewManager(h.store, h.queue, cacheRepo, h.remote, h.session, h.monitor, settingsRepo, time.Hour)
	h.manager.Start(context.Background())
	t.Cleanup(h.manager.Stop)
	return h
}

func (h *harness) queueLen(t *testing.T) int {
	t.Helper()
	n, err := h.queue.Len(context.Background())
	require.NoError(t, err)
	return n
}

func TestOfflineCreateQueuesExactlyOne(t *testing.T) {
	h := newHarness(t, false)
	h.session.SignIn("u1")
	ctx := context.Background()

	event, err := h.manager.AddEvent(ctx, EventParams{Title: "Dentist", Date: "2026-03-10", Time: "14:00"})
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)

	// Optimistic local update, exactly one staged mutation, nothing remote
	assert.Equal(t, 1, h.store.Len())
	assert.Equal(t, 1, h.queueLen(t))
	remoteEvents, err := h.remote.ReadAll(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, remoteEvents)

	assert.Equal(t, StateOffline, h.manager.Status().State)
	assert.Equal(t, IndicatorOffline, h.manager.Status().Indicator)
}

func TestMutationsOnUnknownIDReturnSentinel(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.manager.UpdateEvent(ctx, "nope", EventParams{Title: "x", Date: "2026-03-10"})
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = h.manager.MoveEvent(ctx, "nope", "2026-03-11")
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = h.manager.ToggleCompleted(ctx, "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)

	assert.ErrorIs(t, h.manager.DeleteEvent(ctx, "nope"), ErrEventNotFound)
}

func TestReconnectDrainsQueue(t *testing.T) {
	h := newHarness(t, false)
	h.session.SignIn("u1")
	ctx := context.Background()

	event, err := h.manager.AddEvent(ctx, EventParams{Title: "Dentist", Date: "2026-03-10", Time: "14:00"})
	require.NoError(t, err)
	require.Equal(t, 1, h.queueLen(t))

	h.monitor.Set(true)

	require.Eventually(t, func() bool {
		return h.queueLen(t) == 0
	}, waitFor, tick, "queue should drain after reconnect")

	remoteEvents, err := h.remote.ReadAll(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, remoteEvents, 1)
	assert.Equal(t, event.ID, remoteEvents[0].ID)
	assert.NotEmpty(t, remoteEvents[0].UpdatedAt, "drained writes carry a fresh stamp")

	// The local copy survived reconciliation
	assert.Equal(t, 1, h.store.Len())
}

func TestOnlineCreateWritesThrough(t *testing.T) {
	h := newHarness(t, true)
	h.session.SignIn("u1")
	ctx := context.Background()

	event, err := h.manager.AddEvent(ctx, EventParams{Title: "Gym", Date: "2026-03-11", Time: "18:00"})
	require.NoError(t, err)

	remoteEvents, err := h.remote.ReadAll(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, remoteEvents, 1)
	assert.Equal(t, event.ID, remoteEvents[0].ID)
	assert.Zero(t, h.queueLen(t), "a successful direct write queues nothing")
}

func TestFailedRemoteWriteFallsBackToQueue(t *testing.T) {
	h := newHarness(t, true)
	h.session.SignIn("u1")
	ctx := context.Background()

	h.remote.SetFail(true)
	_, err := h.manager.AddEvent(ctx, EventParams{Title: "Gym", Date: "2026-03-11", Time: "18:00"})
	require.NoError(t, err, "the local write still succeeds")

	assert.Equal(t, 1, h.store.Len())
	assert.Equal(t, 1, h.queueLen(t))
	assert.Equal(t, IndicatorSyncError, h.manager.Status().Indicator)

	// Recovery drains the entry
	h.remote.SetFail(false)
	require.NoError(t, h.manager.ForceSync(ctx))
	require.Eventually(t, func() bool {
		return h.queueLen(t) == 0
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		return h.manager.Status().Indicator == IndicatorOnline
	}, waitFor, tick)
}

func TestPushSnapshotReachesStore(t *testing.T) {
	h := newHarness(t, true)
	h.session.SignIn("u1")

	require.Eventually(t, func() bool {
		return h.remote.SubscriberCount("u1") == 1
	}, waitFor, tick, "sign-in should attach the push subscription")

	h.remote.Push("u1", []models.Event{event("r1", "2026-03-12", "2026-03-01T10:00:00Z")})

	require.Eventually(t, func() bool {
		_, ok := h.store.Get("r1")
		return ok
	}, waitFor, tick, "pushed events should land in the store")
}

func TestRemoteDeletionPropagates(t *testing.T) {
	h := newHarness(t, true)
	h.session.SignIn("u1")
	ctx := context.Background()

	event, err := h.manager.AddEvent(ctx, EventParams{Title: "Gym", Date: "2026-03-11", Time: "18:00"})
	require.NoError(t, err)
	require.Equal(t, 1, h.store.Len())

	// Another device deletes it: the pushed snapshot no longer contains it
	require.NoError(t, h.remote.DeleteOne(ctx, "u1", event.ID))

	require.Eventually(t, func() bool {
		return h.store.Len() == 0
	}, waitFor, tick, "remote deletions should remove the local copy")
}

func TestSignOutClearsLocalState(t *testing.T) {
	h := newHarness(t, true)
	h.session.SignIn("u1")
	ctx := context.Background()

	_, err := h.manager.AddEvent(ctx, EventParams{Title: "Gym", Date: "2026-03-11", Time: "18:00"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h.remote.SubscriberCount("u1") == 1
	}, waitFor, tick)

	h.session.SignOut()

	assert.Zero(t, h.store.Len(), "sign-out clears the event store")
	assert.Zero(t, h.queueLen(t), "sign-out clears staged mutations")
	assert.Zero(t, h.remote.SubscriberCount("u1"), "sign-out detaches the subscription")
	assert.Equal(t, StateOnlineUnauthenticated, h.manager.Status().State)

	// A late push for the old user must not resurrect anything
	h.remote.Push("u1", []models.Event{event("ghost", "2026-03-13", "2026-03-01T10:00:00Z")})
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, h.store.Len())
}

func TestSignInDownloadsRemoteSet(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.remote.Push("u1", []models.Event{event("r1", "2026-03-12", "2026-03-01T10:00:00Z")})

	h.session.SignIn("u1")

	require.Eventually(t, func() bool {
		_, ok := h.store.Get("r1")
		return ok
	}, waitFor, tick, "sign-in should pull the user's remote collection")

	// The download also lands in the durable cache
	events, err := h.manager.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestNetworkLossFromIdleGoesOffline(t *testing.T) {
	h := newHarness(t, true)
	h.session.SignIn("u1")
	require.Eventually(t, func() bool {
		return h.manager.Status().State == StateOnlineIdle
	}, waitFor, tick)

	h.monitor.Set(false)
	assert.Equal(t, StateOffline, h.manager.Status().State)

	h.monitor.Set(true)
	require.Eventually(t, func() bool {
		return h.manager.Status().State == StateOnlineIdle
	}, waitFor, tick)
}

func TestUnauthenticatedMutationsQueue(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	_, err := h.manager.AddEvent(ctx, EventParams{Title: "Solo", Date: "2026-03-10"})
	require.NoError(t, err)

	assert.Equal(t, 1, h.store.Len())
	assert.Equal(t, 1, h.queueLen(t))
	assert.Equal(t, StateOnlineUnauthenticated, h.manager.Status().State)
}
