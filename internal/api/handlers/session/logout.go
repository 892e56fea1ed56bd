package session

import (
	"net/http"

	"Anchor/internal/core/auth"
)

// LogoutHandler clears the server-side session.
type LogoutHandler struct {
	manager *auth.Manager
}

// NewLogoutHandler creates a logout handler.
func NewLogoutHandler(manager *auth.Manager) *LogoutHandler {
	return &LogoutHandler{manager: manager}
}

// HandleLogout handles POST /api/auth/logout. Idempotent: logging out of a
// dead session is still a 204.
func (h *LogoutHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.manager.SignOut(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
