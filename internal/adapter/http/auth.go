package http

import (
	"net/http"
	"strings"

	"github.com/mlevkov/clipdock/internal/service"
)

// RequireAPIKey guards the video endpoints. The key arrives in the X-API-Key
// header, or in the api_key query parameter for clients that cannot set
// headers (EventSource).
func RequireAPIKey(auth *service.AuthService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if !auth.ValidAPIKey(key) {
			respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin guards the admin endpoints with a Bearer token issued by
// Login.
func RequireAdmin(auth *service.AuthService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if _, err := auth.ValidateToken(token); err != nil {
			respondError(w, r, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
