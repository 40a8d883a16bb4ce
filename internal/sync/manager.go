package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/berrylist/backend/internal/auth"
	"github.com/berrylist/backend/internal/remote"
	"github.com/berrylist/backend/internal/storage"
	"github.com/berrylist/backend/internal/storage/models"
	"github.com/berrylist/backend/internal/store"
)

// ErrEventNotFound is returned by mutations whose target id is not in the
// event store.
var ErrEventNotFound = errors.New("sync: event not found")

// Manager orchestrates the event store, the sync queue, and the remote
// store across connectivity and session transitions. It owns the push
// subscription and the periodic reconciliation backstop; both feed the same
// snapshot-reconciliation path.
type Manager struct {
	store    *store.Store
	queue    *Queue
	cache    *storage.EventCacheRepository
	remote   remote.Store
	auth     auth.Provider
	conn     ConnectivityMonitor
	settings *storage.SettingsRepository

	pollInterval time.Duration
	cron         *cron.Cron
	pollEntry    cron.EntryID

	mu        sync.Mutex
	alive     bool
	state     State
	userID    string
	sub       remote.Subscription
	draining  bool
	lastError string
	lastSync  *time.Time
	unsubAuth func()
	unsubConn func()

	listenerMu sync.Mutex
	listeners  map[int]func(Status)
	nextID     int
}

// NewManager wires the sync manager. All collaborators are injected so the
// core runs headless in tests.
func NewManager(
	eventStore *store.Store,
	queue *Queue,
	cache *storage.EventCacheRepository,
	remoteStore remote.Store,
	authProvider auth.Provider,
	connMonitor ConnectivityMonitor,
	settings *storage.SettingsRepository,
	pollInterval time.Duration,
) *Manager {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}

	return &Manager{
		store:        eventStore,
		queue:        queue,
		cache:        cache,
		remote:       remoteStore,
		auth:         authProvider,
		conn:         connMonitor,
		settings:     settings,
		pollInterval: pollInterval,
		cron:         cron.New(),
		state:        StateOffline,
		listeners:    make(map[int]func(Status)),
	}
}

// Start registers for connectivity and session changes and, when a session
// is already live, runs the initial reconciliation.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.alive = true
	m.loadLastSyncLocked(ctx)

	userID, signedIn := m.auth.CurrentUserID()
	online := m.conn.Online()
	switch {
	case !online:
		m.state = StateOffline
	case signedIn:
		m.userID = userID
		m.state = StateOnlineIdle
	default:
		m.state = StateOnlineUnauthenticated
	}

	m.unsubAuth = m.auth.OnChange(m.handleAuthChange)
	m.unsubConn = m.conn.OnChange(m.handleConnChange)

	if m.state == StateOnlineIdle {
		m.beginSessionLocked(ctx)
	}
	m.mu.Unlock()

	m.cron.Start()
	m.notifyStatus()

	if m.hasSession() {
		go m.reconcileAndDrain(context.Background(), "startup")
	}
}

// Stop tears the manager down: poll timer, push subscription, and change
// listeners. Idempotent; safe when nothing was active.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	m.alive = false
	m.teardownPollLocked()
	m.teardownSubscriptionLocked()
	unsubAuth, unsubConn := m.unsubAuth, m.unsubConn
	m.unsubAuth, m.unsubConn = nil, nil
	m.mu.Unlock()

	if unsubAuth != nil {
		unsubAuth()
	}
	if unsubConn != nil {
		unsubConn()
	}

	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
}

// --- exposed collaborator contract -------------------------------------

// EventParams carries the user-editable fields of an event.
type EventParams struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

// Default descriptive tags, matching what the rendering layer expects for
// events created without explicit choices.
const (
	defaultIcon  = "fas fa-calendar"
	defaultColor = "custom-1"
)

// LoadEvents fills the event store: from the remote partition when a
// session is live, otherwise from the local cache. Always returns the
// resulting local set; remote failure falls back to the cache.
func (m *Manager) LoadEvents(ctx context.Context) ([]models.Event, error) {
	if m.hasSession() {
		m.reconcileAndDrain(ctx, "load")
		return m.store.Events(), nil
	}

	cached, err := m.cache.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cached events: %w", err)
	}
	m.store.ReplaceAll(ctx, cached)
	return m.store.Events(), nil
}

// Events returns the current in-session event set.
func (m *Manager) Events() []models.Event {
	return m.store.Events()
}

// OnEventsChanged registers a rendering-layer callback on the event store.
func (m *Manager) OnEventsChanged(fn store.ChangedFunc) func() {
	return m.store.OnChanged(fn)
}

// AddEvent creates an event. The local store is updated first; the remote
// write happens inline when a session is live and is queued otherwise.
func (m *Manager) AddEvent(ctx context.Context, params EventParams) (models.Event, error) {
	event := models.Event{
		ID:          storage.GenerateID(),
		Title:       params.Title,
		Date:        params.Date,
		Time:        params.Time,
		Description: params.Description,
		Type:        models.NormalizeType(params.Type),
		Icon:        params.Icon,
		Color:       params.Color,
	}
	if event.Icon == "" {
		event.Icon = defaultIcon
	}
	if event.Color == "" {
		event.Color = defaultColor
	}
	event.Stamp(time.Now())

	if err := event.Validate(); err != nil {
		return models.Event{}, err
	}

	m.store.Add(ctx, event)
	m.applyMutation(ctx, models.OpCreate, event)
	return event, nil
}

// UpdateEvent overwrites an event's editable fields.
func (m *Manager) UpdateEvent(ctx context.Context, id string, params EventParams) (models.Event, error) {
	event, ok := m.store.Get(id)
	if !ok {
		return models.Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}

	event.Title = params.Title
	event.Date = params.Date
	event.Time = params.Time
	event.Description = params.Description
	event.Type = models.NormalizeType(params.Type)
	if params.Icon != "" {
		event.Icon = params.Icon
	}
	if params.Color != "" {
		event.Color = params.Color
	}
	event.Stamp(time.Now())

	if err := event.Validate(); err != nil {
		return models.Event{}, err
	}

	m.store.Update(ctx, event)
	m.applyMutation(ctx, models.OpUpdate, event)
	return event, nil
}

// DeleteEvent removes an event.
func (m *Manager) DeleteEvent(ctx context.Context, id string) error {
	if !m.store.Remove(ctx, id) {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}

	m.applyMutation(ctx, models.OpDelete, models.Event{ID: id})
	return nil
}

// MoveEvent reschedules an event to a new date, keeping its time. This is
// the drag-and-drop path.
func (m *Manager) MoveEvent(ctx context.Context, id, newDate string) (models.Event, error) {
	event, ok := m.store.Get(id)
	if !ok {
		return models.Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if _, err := time.Parse(models.DateLayout, newDate); err != nil {
		return models.Event{}, fmt.Errorf("invalid date %q: %w", newDate, err)
	}

	event.Date = newDate
	event.Stamp(time.Now())
	m.store.Update(ctx, event)
	m.applyMutation(ctx, models.OpUpdate, event)
	return event, nil
}

// ToggleCompleted flips an event's completed flag.
func (m *Manager) ToggleCompleted(ctx context.Context, id string) (models.Event, error) {
	event, ok := m.store.Get(id)
	if !ok {
		return models.Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}

	event.Completed = !event.Completed
	event.Stamp(time.Now())
	m.store.Update(ctx, event)
	m.applyMutation(ctx, models.OpUpdate, event)
	return event, nil
}

// Status reports the current sync condition.
func (m *Manager) Status() Status {
	m.mu.Lock()
	state := m.state
	lastError := m.lastError
	lastSync := m.lastSync
	m.mu.Unlock()

	pending := 0
	if n, err := m.queue.Len(context.Background()); err == nil {
		pending = n
	}

	return Status{
		State:        state,
		Indicator:    indicatorFor(state, lastError),
		PendingOps:   pending,
		LastSyncTime: lastSync,
		LastError:    lastError,
	}
}

// OnStatusChanged registers a status callback and returns its remover.
func (m *Manager) OnStatusChanged(fn func(Status)) func() {
	m.listenerMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenerMu.Lock()
			delete(m.listeners, id)
			m.listenerMu.Unlock()
		})
	}
}

// ForceSync triggers a full reconciliation immediately.
func (m *Manager) ForceSync(ctx context.Context) error {
	if !m.hasSession() {
		return remote.ErrNotAuthenticated
	}
	m.reconcileAndDrain(ctx, "manual")
	return nil
}

// --- mutation routing ---------------------------------------------------

// applyMutation routes a mutation to the remote store when a session is
// live, and to the queue otherwise. A failed remote write is queued for the
// next drain pass; nothing here surfaces to the caller, whose local change
// already succeeded.
func (m *Manager) applyMutation(ctx context.Context, op string, event models.Event) {
	if m.hasSession() {
		if err := m.applyRemote(ctx, models.QueueEntry{Op: op, Payload: &event, EventID: event.ID}); err != nil {
			log.Printf("Remote %s failed, queueing for retry: %v", op, err)
			m.setLastError(err.Error())
		} else {
			m.recordSync(ctx)
			return
		}
	}

	var payload *models.Event
	if op != models.OpDelete {
		e := event
		payload = &e
	}
	if err := m.queue.Enqueue(ctx, op, payload, event.ID); err != nil {
		m.setLastError(err.Error())
	}
	m.notifyStatus()
}

// applyRemote performs one queued mutation against the remote store.
func (m *Manager) applyRemote(ctx context.Context, entry models.QueueEntry) error {
	userID, ok := m.sessionUser()
	if !ok {
		return remote.ErrNotAuthenticated
	}

	switch entry.Op {
	case models.OpCreate:
		event := *entry.Payload
		event.Stamp(time.Now())
		return m.remote.WriteOne(ctx, userID, event)
	case models.OpUpdate:
		event := *entry.Payload
		event.Stamp(time.Now())
		return m.remote.UpdateOne(ctx, userID, event)
	case models.OpDelete:
		return m.remote.DeleteOne(ctx, userID, entry.TargetID())
	default:
		return fmt.Errorf("unknown queued operation %q", entry.Op)
	}
}

// --- session and connectivity transitions -------------------------------

func (m *Manager) handleAuthChange(userID string, signedIn bool) {
	ctx := context.Background()

	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}

	if !signedIn {
		m.userID = ""
		m.teardownPollLocked()
		m.teardownSubscriptionLocked()
		if m.state != StateOffline {
			m.state = StateOnlineUnauthenticated
		}
		m.mu.Unlock()

		// The next user must never see this session's data or replay
		// its staged mutations into their partition.
		m.store.Clear(ctx)
		if err := m.queue.Clear(ctx); err != nil {
			log.Printf("Could not clear sync queue on sign-out: %v", err)
		}
		log.Println("Signed out: local events cleared, sync torn down")
		m.notifyStatus()
		return
	}

	m.userID = userID
	if m.state == StateOnlineUnauthenticated {
		m.state = StateOnlineIdle
		m.beginSessionLocked(ctx)
		m.mu.Unlock()

		m.notifyStatus()
		go m.reconcileAndDrain(context.Background(), "sign-in")
		return
	}
	m.mu.Unlock()
}

func (m *Manager) handleConnChange(online bool) {
	ctx := context.Background()

	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}

	if !online {
		m.state = StateOffline
		m.teardownSubscriptionLocked()
		m.mu.Unlock()
		m.notifyStatus()
		return
	}

	if m.userID == "" {
		m.state = StateOnlineUnauthenticated
		m.mu.Unlock()
		m.notifyStatus()
		return
	}

	m.state = StateOnlineIdle
	m.beginSessionLocked(ctx)
	m.mu.Unlock()

	m.notifyStatus()
	go m.reconcileAndDrain(context.Background(), "reconnect")
}

// beginSessionLocked attaches the push subscription and the periodic
// reconciliation backstop for the current user. Caller holds m.mu.
func (m *Manager) beginSessionLocked(ctx context.Context) {
	m.subscribeLocked(ctx)

	if m.pollEntry == 0 {
		entry, err := m.cron.AddFunc("@every "+m.pollInterval.String(), m.pollTick)
		if err != nil {
			log.Printf("Could not schedule periodic sync: %v", err)
			return
		}
		m.pollEntry = entry
	}
}

// subscribeLocked attaches the push subscription. Caller holds m.mu.
func (m *Manager) subscribeLocked(ctx context.Context) {
	if m.sub != nil || m.userID == "" {
		return
	}

	sub, err := m.remote.Subscribe(ctx, m.userID, m.handleSnapshot, m.handleSubscriptionError)
	if err != nil {
		// The periodic poll still reconciles; push is an optimization.
		log.Printf("Could not subscribe to remote changes: %v", err)
		m.lastError = err.Error()
		return
	}
	m.sub = sub
}

// teardownSubscriptionLocked detaches the push subscription if one is
// active. Unsubscribe is idempotent, so racing teardown paths are safe.
func (m *Manager) teardownSubscriptionLocked() {
	if m.sub != nil {
		m.sub.Unsubscribe()
		m.sub = nil
	}
}

// teardownPollLocked removes the periodic reconciliation job.
func (m *Manager) teardownPollLocked() {
	if m.pollEntry != 0 {
		m.cron.Remove(m.pollEntry)
		m.pollEntry = 0
	}
}

// --- reconciliation -----------------------------------------------------

// handleSnapshot is the push path: a remote change delivered the user's
// full collection. It runs the same reconciliation as the periodic poll
// and does not itself change the sync state.
func (m *Manager) handleSnapshot(snap remote.Snapshot) {
	m.mu.Lock()
	live := m.alive && m.userID != ""
	m.mu.Unlock()
	if !live {
		// Completion arrived after sign-out or teardown
		return
	}

	ctx := context.Background()
	m.applySnapshot(ctx, snap.Events)
}

func (m *Manager) handleSubscriptionError(err error) {
	log.Printf("Push subscription error: %v", err)
	m.setLastError(err.Error())
	m.notifyStatus()
}

// pollTick is the periodic backstop: while idle, download the remote set
// and run the same reconciliation as a push delivery.
func (m *Manager) pollTick() {
	m.mu.Lock()
	ready := m.alive && m.state == StateOnlineIdle && m.userID != ""
	m.mu.Unlock()
	if !ready {
		return
	}

	m.reconcileAndDrain(context.Background(), "poll")
}

// reconcileAndDrain downloads the remote collection, reconciles it into the
// event store, and drains the queue. Remote failure leaves local state
// untouched and the queue intact for the next pass.
func (m *Manager) reconcileAndDrain(ctx context.Context, reason string) {
	m.mu.Lock()
	if !m.alive || m.draining || m.userID == "" || m.state == StateOffline {
		m.mu.Unlock()
		return
	}
	userID := m.userID
	m.draining = true
	if m.state == StateOnlineIdle {
		m.state = StateOnlineSyncing
	}
	m.mu.Unlock()
	m.notifyStatus()

	defer func() {
		m.mu.Lock()
		m.draining = false
		if m.state == StateOnlineSyncing {
			m.state = StateOnlineIdle
		}
		m.mu.Unlock()
		m.notifyStatus()
	}()

	snapshot, err := m.remote.ReadAll(ctx, userID)
	if err != nil {
		log.Printf("Reconciliation (%s) skipped, remote read failed: %v", reason, err)
		m.setLastError(err.Error())
		return
	}

	m.applySnapshot(ctx, snapshot)
	m.drainQueue(ctx)
}

// applySnapshot reconciles a full remote collection into the event store.
// Both the push listener and the poll/login paths land here, so deletion
// propagation behaves identically everywhere.
func (m *Manager) applySnapshot(ctx context.Context, snapshot []models.Event) {
	pending, err := m.queue.PendingIDs(ctx)
	if err != nil {
		log.Printf("Could not read pending queue, merging without protection: %v", err)
		pending = nil
	}

	merged := ReconcileSnapshot(m.store.Events(), snapshot, pending)

	m.mu.Lock()
	live := m.alive && m.userID != ""
	m.mu.Unlock()
	if !live {
		return
	}

	m.store.ReplaceAll(ctx, merged)
	m.recordSync(ctx)
}

// drainQueue replays pending mutations strictly in order, one in-flight
// write at a time so interleaved writes to the same event cannot corrupt
// the merge. A failed entry stays queued and ends the pass; the periodic
// poll retries later.
func (m *Manager) drainQueue(ctx context.Context) {
	entries, err := m.queue.Pending(ctx)
	if err != nil {
		log.Printf("Could not load sync queue: %v", err)
		m.setLastError(err.Error())
		return
	}
	if len(entries) == 0 {
		return
	}

	drained := 0
	for _, entry := range entries {
		if err := m.applyRemote(ctx, entry); err != nil {
			log.Printf("Queued %s for event %s failed, will retry: %v", entry.Op, entry.TargetID(), err)
			m.setLastError(err.Error())
			break
		}
		if err := m.queue.DequeueSucceeded(ctx, entry.QueueID); err != nil {
			log.Printf("Could not remove drained queue entry %s: %v", entry.QueueID, err)
			break
		}
		drained++
	}

	if drained == len(entries) {
		m.setLastError("")
		m.recordSync(ctx)
	}
	log.Printf("Sync pass completed: %d/%d queued mutations applied", drained, len(entries))
}

// --- bookkeeping --------------------------------------------------------

func (m *Manager) hasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alive && m.userID != "" && m.state != StateOffline
}

func (m *Manager) sessionUser() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alive || m.userID == "" || m.state == StateOffline {
		return "", false
	}
	return m.userID, true
}

func (m *Manager) setLastError(msg string) {
	m.mu.Lock()
	m.lastError = msg
	m.mu.Unlock()
}

// recordSync stamps the last successful sync time, both in memory and in
// the durable settings table.
func (m *Manager) recordSync(ctx context.Context) {
	now := time.Now().UTC()
	m.mu.Lock()
	m.lastSync = &now
	m.lastError = ""
	m.mu.Unlock()

	if m.settings != nil {
		if err := m.settings.Set(ctx, models.SettingLastSyncTime, now.Format(time.RFC3339)); err != nil {
			log.Printf("Could not persist last sync time: %v", err)
		}
	}
}

func (m *Manager) loadLastSyncLocked(ctx context.Context) {
	if m.settings == nil {
		return
	}
	raw, err := m.settings.Get(ctx, models.SettingLastSyncTime)
	if err != nil || raw == "" {
		return
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		m.lastSync = &t
	}
}

func (m *Manager) notifyStatus() {
	status := m.Status()

	m.listenerMu.Lock()
	fns := make([]func(Status), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenerMu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}
