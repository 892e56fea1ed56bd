package checkins

import (
	"encoding/json"
	"errors"
	"net/http"

	"Anchor/internal/api/handlers"
	"Anchor/internal/api/middleware"
	"Anchor/internal/atproto/pds"
	"Anchor/internal/atproto/utils"
	"Anchor/internal/core/auth"
	"Anchor/internal/core/checkin"
)

// CreateHandler publishes check-ins through the StrongRef pipeline.
type CreateHandler struct {
	service *checkin.Service
}

// NewCreateHandler creates a check-in handler.
func NewCreateHandler(service *checkin.Service) *CreateHandler {
	return &CreateHandler{service: service}
}

// createRequest is the wire shape of POST /api/checkins.
type createRequest struct {
	Text        string              `json:"text"`
	Place       checkin.Place       `json:"place"`
	Coordinates checkin.Coordinates `json:"coordinates"`
	Image       *checkin.ImageRef   `json:"image,omitempty"`
	AddressRef  *pds.StrongRef      `json:"addressRef,omitempty"`
	Crosspost   bool                `json:"crosspost"`
}

// HandleCreate handles POST /api/checkins
func (h *CreateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1*1024*1024)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	if middleware.GetUserDID(r) == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	result, err := h.service.Publish(r.Context(), checkin.Request{
		Text:        req.Text,
		Place:       req.Place,
		Coordinates: req.Coordinates,
		Image:       req.Image,
		AddressRef:  req.AddressRef,
		Crosspost:   req.Crosspost,
	})
	if err != nil {
		writePublishError(w, result, err)
		return
	}

	body := map[string]any{
		"checkin":   result.Checkin,
		"address":   result.Address,
		"rkey":      utils.ExtractRKeyFromURI(result.Checkin.URI),
		"createdAt": result.CreatedAt,
	}
	if result.Crosspost != nil {
		body["crosspost"] = result.Crosspost
	}
	if result.CrosspostWarning != nil {
		// The check-in landed; the crosspost is a dismissible notice.
		body["crosspostWarning"] = result.CrosspostWarning.Error()
	}
	handlers.WriteJSON(w, http.StatusCreated, body)
}

// writePublishError maps publish failures onto HTTP. A failed check-in
// write returns the already-published address ref so the client can retry
// without creating a duplicate address record.
func writePublishError(w http.ResponseWriter, result *checkin.Result, err error) {
	switch {
	case errors.Is(err, checkin.ErrValidation):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	case errors.Is(err, auth.ErrReauthenticationRequired):
		handlers.WriteError(w, http.StatusUnauthorized, "ReauthenticationRequired", "Session expired; log in again")
	case errors.Is(err, auth.ErrNotAuthenticated):
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
	case errors.Is(err, checkin.ErrCheckinWriteFailed):
		body := map[string]any{
			"error":   "CheckinWriteFailed",
			"message": "Check-in write failed; retry with the returned addressRef",
		}
		if result != nil && result.Address.URI != "" {
			body["addressRef"] = result.Address
		}
		handlers.WriteJSON(w, http.StatusBadGateway, body)
	case errors.Is(err, checkin.ErrAddressWriteFailed):
		handlers.WriteError(w, http.StatusBadGateway, "AddressWriteFailed", "Address record write failed")
	default:
		handlers.WriteError(w, http.StatusBadGateway, "PublishFailed", "Check-in publish failed")
	}
}
