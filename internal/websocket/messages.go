package websocket

import (
	"encoding/json"
	"time"

	"github.com/berrylist/backend/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeEventsChanged     MessageType = "events.changed"
	TypeSyncStatusChanged MessageType = "sync.status_changed"
	TypeNotification      MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventsChangedPayload is the payload for events.changed messages. It
// carries the full event set so the view can re-render without a fetch.
type EventsChangedPayload struct {
	Events []models.Event `json:"events"`
	Total  int            `json:"total"`
}

// SyncStatusPayload is the payload for sync.status_changed messages.
type SyncStatusPayload struct {
	State        string     `json:"state"`
	Indicator    string     `json:"indicator"`
	PendingOps   int        `json:"pendingOps"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
}

// NotificationPayload is the payload for notification messages.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
