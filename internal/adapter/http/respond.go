package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/infrastructure/logger"
)

type ctxKey int

const requestIDKey ctxKey = 0

// errorBody is the stable error envelope every failure response carries.
type errorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

type successBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, successBody{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, errorBody{
		Success:   false,
		Error:     code,
		Message:   message,
		RequestID: requestIDFrom(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// respondFailure maps a classified processing failure onto its HTTP status.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.FailureKindOf(err)
	status, code := statusForFailure(kind)
	respondError(w, r, status, code, err.Error())
}

func statusForFailure(kind domain.FailureKind) (int, string) {
	switch kind {
	case domain.FailureTimeout:
		return http.StatusRequestTimeout, "timeout"
	case domain.FailurePrivate:
		return http.StatusForbidden, "private_or_unavailable"
	case domain.FailureUnsupportedURL:
		return http.StatusInternalServerError, "unsupported_url"
	case domain.FailureStorageFull:
		return http.StatusInsufficientStorage, "storage_full"
	default:
		return http.StatusInternalServerError, "extraction_error"
	}
}

// RequestID tags every request with an identifier for error correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Recover maps panics to a generic 500 with the request id, never leaking
// the panic value to the client.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error.Printf("panic serving %s %s: %v", r.Method, logger.SanitizeForLog(r.URL.Path), rec)
				respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
