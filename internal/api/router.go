// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/berrylist/backend/internal/api/handlers"
	"github.com/berrylist/backend/internal/api/middleware"
	"github.com/berrylist/backend/internal/auth"
	"github.com/berrylist/backend/internal/storage"
	"github.com/berrylist/backend/internal/sync"
	"github.com/berrylist/backend/internal/userdata"
	"github.com/berrylist/backend/internal/websocket"
)

// Deps carries everything the router's handlers need.
type Deps struct {
	DB       *storage.DB
	Hub      *websocket.Hub
	Manager  *sync.Manager
	Session  *auth.SessionProvider
	Settings *storage.SettingsRepository
	UserData *userdata.Service

	// StaticDir holds the bundled view assets; empty disables serving them.
	StaticDir string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(deps.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(deps.Manager, deps.Hub)).Methods("GET")

	// WebSocket endpoint for view push updates
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(deps.Hub)).Methods("GET")

	// Session endpoints
	api.HandleFunc("/session", handlers.GetSession(deps.Session)).Methods("GET")
	api.HandleFunc("/session/sign-in", handlers.SignIn(deps.Session)).Methods("POST")
	api.HandleFunc("/session/sign-out", handlers.SignOut(deps.Session)).Methods("POST")

	// Event endpoints
	api.HandleFunc("/events", handlers.ListEvents(deps.Manager)).Methods("GET")
	api.HandleFunc("/events", handlers.CreateEvent(deps.Manager)).Methods("POST")
	api.HandleFunc("/events/{id}", handlers.GetEvent(deps.Manager)).Methods("GET")
	api.HandleFunc("/events/{id}", handlers.UpdateEvent(deps.Manager)).Methods("PUT")
	api.HandleFunc("/events/{id}", handlers.DeleteEvent(deps.Manager)).Methods("DELETE")
	api.HandleFunc("/events/{id}/move", handlers.MoveEvent(deps.Manager)).Methods("POST")
	api.HandleFunc("/events/{id}/toggle-complete", handlers.ToggleEventCompleted(deps.Manager)).Methods("POST")

	// Computed calendar views
	api.HandleFunc("/calendar/{year:[0-9]+}/{month:[0-9]+}", handlers.MonthView(deps.Manager, deps.Settings)).Methods("GET")
	api.HandleFunc("/calendar/day/{date}", handlers.DayView(deps.Manager)).Methods("GET")

	// Sync endpoints
	api.HandleFunc("/sync/status", handlers.SyncStatus(deps.Manager)).Methods("GET")
	api.HandleFunc("/sync/force", handlers.ForceSync(deps.Manager)).Methods("POST")

	// Settings endpoints
	api.HandleFunc("/settings", handlers.GetSettings(deps.Settings)).Methods("GET")
	api.HandleFunc("/settings", handlers.UpdateSettings(deps.Settings)).Methods("PUT")

	// Backup endpoints
	api.HandleFunc("/data/export", handlers.ExportData(deps.UserData, deps.Session)).Methods("GET")
	api.HandleFunc("/data/import", handlers.ImportData(deps.UserData, deps.Session)).Methods("POST")

	// Serve static view files
	if deps.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(deps.StaticDir)))
	}

	return r
}
