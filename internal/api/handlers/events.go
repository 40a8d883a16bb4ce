// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/berrylist/backend/internal/api/middleware"
	"github.com/berrylist/backend/internal/storage/models"
	"github.com/berrylist/backend/internal/sync"
)

// EventsResponse represents a list of events in API responses.
type EventsResponse struct {
	Events []models.Event `json:"events"`
	Total  int            `json:"total"`
}

// ListEvents returns the current event set, optionally filtered by exact
// date (?date=YYYY-MM-DD) or month (?month=YYYY-MM).
func ListEvents(m *sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events := m.Events()

		if date := r.URL.Query().Get("date"); date != "" {
			events = filterEvents(events, func(e models.Event) bool { return e.Date == date })
		}
		if month := r.URL.Query().Get("month"); month != "" {
			prefix := month + "-"
			events = filterEvents(events, func(e models.Event) bool { return strings.HasPrefix(e.Date, prefix) })
		}

		writeJSON(w, http.StatusOK, EventsResponse{Events: events, Total: len(events)})
	}
}

// GetEvent returns a single event by id.
func GetEvent(m *sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		events := m.Events()
		for _, e := range events {
			if e.ID == id {
				writeJSON(w, http.StatusOK, e)
				return
			}
		}
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
	}
}

// CreateEvent adds a new event. The local store is updated immediately;
// remote propagation happens behind the scenes.
func CreateEvent(m *sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params sync.EventParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		event, err := m.AddEvent(r.Context(), params)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, event)
	}
}

// UpdateEvent overwrites an event's editable fields.
func UpdateEvent(m *sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var params sync.EventParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		event, err := m.UpdateEvent(r.Context(), id, params)
		if err != nil {
			if errors.Is(err, sync.ErrEventNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
			} else {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

// DeleteEvent removes an event.
func DeleteEvent(m *sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := m.DeleteEvent(r.Context(), id); err != nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// MoveEventRequest is the body for the drag-and-drop reschedule endpoint.
type MoveEventRequest struct {
	Date string `json:"date"`
}

// MoveEvent reschedules an event to a new date, keeping its time.
func MoveEvent(m *sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req MoveEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		event, err := m.MoveEvent(r.Context(), id, req.Date)
		if err != nil {
			if errors.Is(err, sync.ErrEventNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
			} else {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

// ToggleEventCompleted flips an event's completed flag.
func ToggleEventCompleted(m *sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		event, err := m.ToggleCompleted(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

func filterEvents(events []models.Event, keep func(models.Event) bool) []models.Event {
	out := events[:0:0]
	for _, e := range events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
