package handlers

import (
	"net/http"

	"github.com/berrylist/backend/internal/storage"
	"github.com/berrylist/backend/internal/sync"
	"github.com/berrylist/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check. It also
// serves as the connectivity probe target for clients of this server.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{Status: status, DBConnected: dbConnected})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	SyncState    string `json:"sync_state"`
	Indicator    string `json:"indicator"`
	PendingOps   int    `json:"pending_operations"`
	EventCount   int    `json:"event_count"`
	ViewClients  int    `json:"view_clients"`
	LastSyncTime string `json:"last_sync_time,omitempty"`
}

// Status returns a handler that provides system status information.
func Status(m *sync.Manager, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := m.Status()

		response := StatusResponse{
			SyncState:   string(status.State),
			Indicator:   status.Indicator,
			PendingOps:  status.PendingOps,
			EventCount:  len(m.Events()),
			ViewClients: hub.ClientCount(),
		}
		if status.LastSyncTime != nil {
			response.LastSyncTime = status.LastSyncTime.UTC().Format("2006-01-02T15:04:05Z07:00")
		}

		writeJSON(w, http.StatusOK, response)
	}
}
