package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"Anchor/internal/api/handlers"
	"Anchor/internal/core/auth"
)

// gatewayTokenTTL is how long an issued sealed token stays valid. The PDS
// session behind it refreshes independently.
const gatewayTokenTTL = 7 * 24 * time.Hour

// LoginHandler exchanges a handle and app password for a sealed gateway token.
type LoginHandler struct {
	manager *auth.Manager
	sealer  *auth.Sealer
}

// NewLoginHandler creates a login handler.
func NewLoginHandler(manager *auth.Manager, sealer *auth.Sealer) *LoginHandler {
	return &LoginHandler{manager: manager, sealer: sealer}
}

// HandleLogin handles POST /api/auth/login
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)

	var req struct {
		Handle      string `json:"handle"`
		AppPassword string `json:"appPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}
	if req.Handle == "" || req.AppPassword == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "handle and appPassword are required")
		return
	}

	creds, err := h.manager.Login(r.Context(), req.Handle, req.AppPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			handlers.WriteError(w, http.StatusUnauthorized, "InvalidCredentials", "Handle or app password rejected")
		case errors.Is(err, auth.ErrServer):
			handlers.WriteError(w, http.StatusBadGateway, "UpstreamError", "PDS returned an error")
		default:
			handlers.WriteError(w, http.StatusBadGateway, "NetworkError", "Could not reach PDS")
		}
		return
	}

	token, err := h.sealer.Seal(creds.DID, creds.Handle, gatewayTokenTTL)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to issue session token")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"token":  token,
		"did":    creds.DID,
		"handle": creds.Handle,
	})
}
