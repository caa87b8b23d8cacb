package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/studyhall/studyhall-go/internal/backend"
	"github.com/studyhall/studyhall-go/internal/coordinator"
	"github.com/studyhall/studyhall-go/internal/model"
	"github.com/studyhall/studyhall-go/internal/service"
)

// AuthHandler handles HTTP requests for authentication actions.
type AuthHandler struct {
	coord *coordinator.Coordinator
	svc   *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(coord *coordinator.Coordinator, svc *service.AuthService) *AuthHandler {
	return &AuthHandler{coord: coord, svc: svc}
}

// HandleSignUp handles POST /api/v1/auth/signup requests.
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var data model.SignUpData
	if !decodeBody(w, r, &data) {
		return
	}

	if err := h.coord.SignUp(r.Context(), data); err != nil {
		writeJSON(w, authErrorStatus(err), errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusAccepted, h.coord.State())
}

// HandleSignIn handles POST /api/v1/auth/signin requests.
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var data model.SignInData
	if !decodeBody(w, r, &data) {
		return
	}

	if err := h.coord.SignIn(r.Context(), data); err != nil {
		writeJSON(w, authErrorStatus(err), errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, h.coord.State())
}

// HandleSignOut handles POST /api/v1/auth/signout requests.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.SignOut(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.coord.State())
}

// HandleResetPassword handles POST /api/v1/auth/reset-password requests.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Email); err != nil {
		writeJSON(w, authErrorStatus(err), errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recovery email sent"})
}

// authErrorStatus maps a classified auth failure to an HTTP status.
func authErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrEmailNotConfirmed):
		return http.StatusForbidden
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, service.ErrPasswordTooShort), errors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case backend.IsKind(err, backend.KindNotConfigured):
		return http.StatusServiceUnavailable
	case backend.IsKind(err, backend.KindTimeout), backend.IsKind(err, backend.KindNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a bounded JSON request body into dest, writing the
// error response itself when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if err.Error() == "http: request body too large" {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}
