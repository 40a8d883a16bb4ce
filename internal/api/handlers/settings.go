package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/berrylist/backend/internal/api/middleware"
	"github.com/berrylist/backend/internal/storage"
	"github.com/berrylist/backend/internal/storage/models"
)

// SettingsResponse represents user preferences in API responses.
type SettingsResponse struct {
	WeekStart string `json:"weekStart"`
	Theme     string `json:"theme"`
	Language  string `json:"language"`
}

// GetSettings returns the user's preferences.
func GetSettings(settings *storage.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		all, err := settings.All(ctx)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query settings")
			return
		}

		writeJSON(w, http.StatusOK, SettingsResponse{
			WeekStart: all[models.SettingWeekStart],
			Theme:     all[models.SettingTheme],
			Language:  all[models.SettingLanguage],
		})
	}
}

// UpdateSettings updates preferences. Empty fields are left untouched.
func UpdateSettings(settings *storage.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req SettingsResponse
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		updates := map[string]string{
			models.SettingWeekStart: req.WeekStart,
			models.SettingTheme:     req.Theme,
			models.SettingLanguage:  req.Language,
		}
		for key, value := range updates {
			if value == "" {
				continue
			}
			if err := settings.Set(ctx, key, value); err != nil {
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update settings")
				return
			}
		}

		all, err := settings.All(ctx)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query settings")
			return
		}
		writeJSON(w, http.StatusOK, SettingsResponse{
			WeekStart: all[models.SettingWeekStart],
			Theme:     all[models.SettingTheme],
			Language:  all[models.SettingLanguage],
		})
	}
}
