package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/berrylist/backend/internal/api/middleware"
	"github.com/berrylist/backend/internal/auth"
)

// SignInRequest is the body for the sign-in endpoint.
type SignInRequest struct {
	UserID string `json:"userId"`
}

// SessionResponse represents the current session in API responses.
type SessionResponse struct {
	UserID   string `json:"userId,omitempty"`
	SignedIn bool   `json:"signedIn"`
}

// GetSession reports the current session.
func GetSession(p *auth.SessionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, signedIn := p.CurrentUserID()
		writeJSON(w, http.StatusOK, SessionResponse{UserID: userID, SignedIn: signedIn})
	}
}

// SignIn opens a session for the given user. The sync manager reacts
// through the session change feed: it subscribes to the user's partition
// and runs the initial reconciliation.
func SignIn(p *auth.SessionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if req.UserID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "userId is required")
			return
		}

		p.SignIn(req.UserID)
		writeJSON(w, http.StatusOK, SessionResponse{UserID: req.UserID, SignedIn: true})
	}
}

// SignOut closes the session. Local events and staged mutations are
// cleared so the next user starts from their own remote data.
func SignOut(p *auth.SessionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.SignOut()
		writeJSON(w, http.StatusOK, SessionResponse{SignedIn: false})
	}
}
