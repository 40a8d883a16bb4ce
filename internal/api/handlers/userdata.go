package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/berrylist/backend/internal/api/middleware"
	"github.com/berrylist/backend/internal/auth"
	"github.com/berrylist/backend/internal/storage/models"
	"github.com/berrylist/backend/internal/userdata"
)

// ExportData streams the signed-in user's full backup document as a JSON
// download.
func ExportData(svc *userdata.Service, p *auth.SessionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, signedIn := p.CurrentUserID()
		if !signedIn {
			middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrUnauthorized, "No active session")
			return
		}

		profile := models.Profile{DisplayName: userID}

		filename := fmt.Sprintf("berrylist-export-%s.json", time.Now().Format("2006-01-02"))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)

		if err := svc.WriteExport(r.Context(), w, userID, profile); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Export failed")
			return
		}
	}
}

// ImportData applies an uploaded backup document. With ?mode=replace the
// current event set is discarded first; the default merges by
// last-writer-wins.
func ImportData(svc *userdata.Service, p *auth.SessionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, signedIn := p.CurrentUserID(); !signedIn {
			middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrUnauthorized, "No active session")
			return
		}

		replace := r.URL.Query().Get("mode") == "replace"

		result, err := svc.Import(r.Context(), r.Body, replace)
		if err != nil {
			if errors.Is(err, userdata.ErrMalformedImport) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrMalformedImport, err.Error())
				return
			}
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Import failed")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
