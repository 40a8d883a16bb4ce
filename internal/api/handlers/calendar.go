package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/berrylist/backend/internal/api/middleware"
	"github.com/berrylist/backend/internal/calendar"
	"github.com/berrylist/backend/internal/storage"
	"github.com/berrylist/backend/internal/storage/models"
	"github.com/berrylist/backend/internal/sync"
)

// MonthViewResponse represents a rendered month grid.
type MonthViewResponse struct {
	Year      int                `json:"year"`
	Month     int                `json:"month"`
	WeekStart string             `json:"weekStart"`
	Headers   []string           `json:"headers"`
	Cells     []calendar.DayCell `json:"cells"`
}

// MonthView computes the month grid for /calendar/{year}/{month}. The week
// start column comes from settings unless overridden with ?weekStart=.
func MonthView(m *sync.Manager, settings *storage.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		year, err := strconv.Atoi(vars["year"])
		if err != nil || year < 1 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid year")
			return
		}
		month, err := strconv.Atoi(vars["month"])
		if err != nil || month < 1 || month > 12 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid month")
			return
		}

		raw := r.URL.Query().Get("weekStart")
		if raw == "" {
			raw, _ = settings.Get(r.Context(), models.SettingWeekStart)
		}
		weekStart := calendar.ParseWeekStart(raw)

		cells := calendar.MonthGrid(year, time.Month(month), weekStart, m.Events())

		writeJSON(w, http.StatusOK, MonthViewResponse{
			Year:      year,
			Month:     month,
			WeekStart: string(weekStart),
			Headers:   weekStart.Headers(),
			Cells:     cells,
		})
	}
}

// DayView computes the hour-bucketed schedule for /calendar/day/{date}.
func DayView(m *sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := mux.Vars(r)["date"]
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}

		writeJSON(w, http.StatusOK, calendar.DayBuckets(date, m.Events()))
	}
}
