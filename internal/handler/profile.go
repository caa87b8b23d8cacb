package handler

import (
	"errors"
	"net/http"

	"github.com/studyhall/studyhall-go/internal/coordinator"
	"github.com/studyhall/studyhall-go/internal/model"
)

// ProfileHandler handles HTTP requests for the signed-in user's profile.
type ProfileHandler struct {
	coord *coordinator.Coordinator
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(coord *coordinator.Coordinator) *ProfileHandler {
	return &ProfileHandler{coord: coord}
}

// HandleGetProfile handles GET /api/v1/profile requests. A signed-in
// user without a profile row gets a null body, not an error.
func (h *ProfileHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	state := h.coord.State()
	if state.User == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse("not signed in"))
		return
	}
	writeJSON(w, http.StatusOK, state.Profile)
}

// HandleUpdateProfile handles PATCH /api/v1/profile requests.
func (h *ProfileHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var updates model.ProfileUpdate
	if !decodeBody(w, r, &updates) {
		return
	}
	if updates.Empty() {
		writeJSON(w, http.StatusBadRequest, errorResponse("no profile fields to update"))
		return
	}

	if err := h.coord.UpdateProfile(r.Context(), updates); err != nil {
		if errors.Is(err, coordinator.ErrNoUser) {
			writeJSON(w, http.StatusUnauthorized, errorResponse(err.Error()))
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, h.coord.State().Profile)
}

// HandleRetryProfileLoad handles POST /api/v1/profile/retry requests.
func (h *ProfileHandler) HandleRetryProfileLoad(w http.ResponseWriter, r *http.Request) {
	h.coord.RetryProfileLoad(r.Context())
	writeJSON(w, http.StatusOK, h.coord.State())
}
