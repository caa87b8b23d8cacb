package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/studyhall/studyhall-go/internal/coordinator"
)

// RequireUser returns middleware that rejects requests while no user is
// authenticated in the coordinator's state.
func RequireUser(coord *coordinator.Coordinator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if coord.State().User == nil {
				writeJSONError(w, http.StatusUnauthorized, "not signed in")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
