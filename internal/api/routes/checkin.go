package routes

import (
	"github.com/go-chi/chi/v5"

	"Anchor/internal/api/handlers/checkins"
	"Anchor/internal/api/middleware"
	"Anchor/internal/core/checkin"
)

// RegisterCheckinRoutes registers check-in endpoints on the router.
// Publishing requires a valid sealed gateway token.
func RegisterCheckinRoutes(r chi.Router, service *checkin.Service, authMiddleware *middleware.SessionAuth) {
	createHandler := checkins.NewCreateHandler(service)

	r.With(authMiddleware.RequireAuth).Post("/api/checkins", createHandler.HandleCreate)
}
