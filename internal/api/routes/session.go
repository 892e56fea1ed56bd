package routes

import (
	"github.com/go-chi/chi/v5"

	"Anchor/internal/api/handlers/session"
	"Anchor/internal/core/auth"
)

// RegisterSessionRoutes registers authentication endpoints on the router.
func RegisterSessionRoutes(r chi.Router, manager *auth.Manager, sealer *auth.Sealer) {
	loginHandler := session.NewLoginHandler(manager, sealer)
	logoutHandler := session.NewLogoutHandler(manager)
	getHandler := session.NewGetHandler(manager)

	r.Post("/api/auth/login", loginHandler.HandleLogin)
	r.Post("/api/auth/logout", logoutHandler.HandleLogout)
	r.Get("/api/auth/session", getHandler.HandleGet)
}
