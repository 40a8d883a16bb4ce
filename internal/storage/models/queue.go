package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Queue operation kinds.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// QueueEntry is a pending mutation staged for replay against the remote
// store. Entries are appended when a mutation cannot be applied immediately
// and removed only after the corresponding remote write succeeds.
type QueueEntry struct {
	QueueID   string    `json:"queue_id"`
	Timestamp time.Time `json:"timestamp"`
	Op        string    `json:"op"`
	Payload   *Event    `json:"payload,omitempty"`
	EventID   string    `json:"event_id,omitempty"` // target for update/delete
}

// Validate checks the entry is replayable.
func (q QueueEntry) Validate() error {
	switch q.Op {
	case OpCreate, OpUpdate:
		if q.Payload == nil {
			return fmt.Errorf("%s entry requires a payload", q.Op)
		}
	case OpDelete:
		if q.EventID == "" {
			return fmt.Errorf("delete entry requires an event id")
		}
	default:
		return fmt.Errorf("unknown operation %q", q.Op)
	}
	return nil
}

// TargetID returns the event id the entry applies to.
func (q QueueEntry) TargetID() string {
	if q.EventID != "" {
		return q.EventID
	}
	if q.Payload != nil {
		return q.Payload.ID
	}
	return ""
}

// MarshalPayload serializes the payload for durable storage.
func (q QueueEntry) MarshalPayload() ([]byte, error) {
	if q.Payload == nil {
		return nil, nil
	}
	return json.Marshal(q.Payload)
}

// UnmarshalPayload restores the payload from durable storage.
func (q *QueueEntry) UnmarshalPayload(data []byte) error {
	if len(data) == 0 {
		q.Payload = nil
		return nil
	}
	q.Payload = &Event{}
	return json.Unmarshal(data, q.Payload)
}
