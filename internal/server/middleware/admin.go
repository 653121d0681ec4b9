package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/keygate/keygate/internal/model"
)

// AdminKeyHeader carries the shared admin secret for log endpoints.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards the audit-log endpoints with a shared secret. An
// empty configured key disables the endpoints outright; the comparison is
// constant-time.
func RequireAdminKey(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeAuthError(w, http.StatusNotFound, "Log API is not enabled")
				return
			}
			got := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(adminKey)) != 1 {
				writeAuthError(w, http.StatusUnauthorized, "Admin key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
