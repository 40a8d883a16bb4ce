package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/berrylist/backend/internal/api/middleware"
	"github.com/berrylist/backend/internal/remote"
	"github.com/berrylist/backend/internal/sync"
)

// SyncStatusResponse represents the sync condition in API responses.
type SyncStatusResponse struct {
	State        string     `json:"state"`
	Indicator    string     `json:"indicator"`
	PendingOps   int        `json:"pendingOps"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
}

// SyncStatus reports the manager's current state, indicator, and queue depth.
func SyncStatus(m *sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := m.Status()
		writeJSON(w, http.StatusOK, SyncStatusResponse{
			State:        string(status.State),
			Indicator:    status.Indicator,
			PendingOps:   status.PendingOps,
			LastSyncTime: status.LastSyncTime,
			LastError:    status.LastError,
		})
	}
}

// ForceSync triggers an immediate full reconciliation.
func ForceSync(m *sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.ForceSync(r.Context()); err != nil {
			if errors.Is(err, remote.ErrNotAuthenticated) {
				middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrUnauthorized, "No active session")
				return
			}
			middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrSyncUnavailable, err.Error())
			return
		}

		status := m.Status()
		writeJSON(w, http.StatusOK, SyncStatusResponse{
			State:        string(status.State),
			Indicator:    status.Indicator,
			PendingOps:   status.PendingOps,
			LastSyncTime: status.LastSyncTime,
			LastError:    status.LastError,
		})
	}
}
