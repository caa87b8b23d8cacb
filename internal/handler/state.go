package handler

import (
	"net/http"

	"github.com/studyhall/studyhall-go/internal/coordinator"
)

// StateHandler exposes the auth state read model to the web shell.
type StateHandler struct {
	coord *coordinator.Coordinator
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(coord *coordinator.Coordinator) *StateHandler {
	return &StateHandler{coord: coord}
}

// HandleState handles GET /api/v1/state requests.
func (h *StateHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.State())
}
