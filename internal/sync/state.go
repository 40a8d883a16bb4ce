package sync

import "time"

// State is the sync manager's connectivity/session state.
type State string

const (
	// StateOffline: no network; mutations go to the queue.
	StateOffline State = "offline"
	// StateOnlineUnauthenticated: network up, no session; mutations queue
	// until sign-in.
	StateOnlineUnauthenticated State = "online_unauthenticated"
	// StateOnlineIdle: network up, signed in, nothing in flight.
	StateOnlineIdle State = "online_idle"
	// StateOnlineSyncing: a queue drain or reconciliation is running.
	StateOnlineSyncing State = "online_syncing"
)

// Indicator constants for the user-visible connection badge.
const (
	IndicatorOffline   = "offline"
	IndicatorOnline    = "online"
	IndicatorSyncing   = "syncing"
	IndicatorSyncError = "sync-error"
)

// Status is the externally visible sync condition, feeding the transient
// connectivity indicator. Transient remote failures appear here instead of
// interrupting calendar use.
type Status struct {
	State        State      `json:"state"`
	Indicator    string     `json:"indicator"`
	PendingOps   int        `json:"pending_ops"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// indicatorFor maps internal state plus the last error to the badge shown
// to the user.
func indicatorFor(state State, lastError string) string {
	switch state {
	case StateOffline:
		return IndicatorOffline
	case StateOnlineSyncing:
		return IndicatorSyncing
	default:
		if lastError != "" {
			return IndicatorSyncError
		}
		return IndicatorOnline
	}
}
