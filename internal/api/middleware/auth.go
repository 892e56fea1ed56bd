package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"Anchor/internal/api/handlers"
	"Anchor/internal/core/auth"
)

// Context keys for storing request identity
type contextKey string

const UserDIDKey contextKey = "user_did"

// SessionAuth enforces sealed-token authentication on protected routes.
// Clients hold an opaque AES-GCM sealed token issued at login; the PDS
// access and refresh tokens never leave the server.
type SessionAuth struct {
	sealer  *auth.Sealer
	manager *auth.Manager
}

// NewSessionAuth creates the auth middleware.
func NewSessionAuth(sealer *auth.Sealer, manager *auth.Manager) *SessionAuth {
	return &SessionAuth{sealer: sealer, manager: manager}
}

// RequireAuth validates the Bearer token and checks it still matches the
// live session. Injects the user DID into the request context.
func (m *SessionAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Missing Authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Expected: Bearer <token>")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		sealed, err := m.sealer.Unseal(token)
		if err != nil {
			slog.Debug("rejected gateway token", "path", r.URL.Path, "error", err)
			handlers.WriteError(w, http.StatusUnauthorized, "InvalidToken", "Invalid or expired token")
			return
		}

		// The gateway token can outlive the PDS session (sign-out, expiry).
		if m.manager.DID() != sealed.DID {
			handlers.WriteError(w, http.StatusUnauthorized, "SessionExpired", "Session no longer active; log in again")
			return
		}

		ctx := context.WithValue(r.Context(), UserDIDKey, sealed.DID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserDID returns the authenticated DID from the request context, or "".
func GetUserDID(r *http.Request) string {
	did, _ := r.Context().Value(UserDIDKey).(string)
	return did
}
