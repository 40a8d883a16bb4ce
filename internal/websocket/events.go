package websocket

import (
	"log"

	"github.com/berrylist/backend/internal/storage/models"
	syncer "github.com/berrylist/backend/internal/sync"
)

// EventBroadcaster pushes calendar and sync updates to connected view
// clients. It subscribes to the event store and the sync manager, so every
// local mutation and every reconciled remote change reaches open views
// without polling.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// Attach wires the broadcaster to the sync manager's change feeds and
// returns a teardown function.
func (b *EventBroadcaster) Attach(m *syncer.Manager) func() {
	unsubEvents := m.OnEventsChanged(b.BroadcastEventsChanged)
	unsubStatus := m.OnStatusChanged(b.BroadcastSyncStatus)
	return func() {
		unsubEvents()
		unsubStatus()
	}
}

// BroadcastEventsChanged sends the full current event set.
func (b *EventBroadcaster) BroadcastEventsChanged(events []models.Event) {
	payload := EventsChangedPayload{
		Events: events,
		Total:  len(events),
	}
	b.broadcast(NewMessage(TypeEventsChanged, payload))
}

// BroadcastSyncStatus sends the current sync condition.
func (b *EventBroadcaster) BroadcastSyncStatus(status syncer.Status) {
	payload := SyncStatusPayload{
		State:        string(status.State),
		Indicator:    status.Indicator,
		PendingOps:   status.PendingOps,
		LastSyncTime: status.LastSyncTime,
		LastError:    status.LastError,
	}
	b.broadcast(NewMessage(TypeSyncStatusChanged, payload))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, message string) {
	payload := NotificationPayload{
		Level:       level,
		Message:     message,
		Dismissible: true,
	}
	b.broadcast(NewMessage(TypeNotification, payload))
}

func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}
	b.hub.Broadcast(data)
}
