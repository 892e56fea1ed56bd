package session

import (
	"net/http"

	"Anchor/internal/api/handlers"
	"Anchor/internal/core/auth"
)

// GetHandler reports session state for the client UI.
type GetHandler struct {
	manager *auth.Manager
}

// NewGetHandler creates a session info handler.
func NewGetHandler(manager *auth.Manager) *GetHandler {
	return &GetHandler{manager: manager}
}

// HandleGet handles GET /api/auth/session
func (h *GetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"state": h.manager.State().String(),
	}
	if creds := h.manager.Credentials(); creds != nil {
		body["did"] = creds.DID
		body["handle"] = creds.Handle
		body["expiresAt"] = creds.ExpiresAt
	}
	handlers.WriteJSON(w, http.StatusOK, body)
}
