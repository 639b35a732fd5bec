package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/usedplus/core/internal/domain"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	FarmIDKey    contextKey = "farm_id"
	TraceIDKey   contextKey = "trace_id"
)

// RequestID middleware generates or extracts a request ID
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)

		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetFarmID extracts the authenticated farm ID from context.
func GetFarmID(ctx context.Context) (domain.FarmId, bool) {
	id, ok := ctx.Value(FarmIDKey).(domain.FarmId)
	return id, ok
}

type farmIDBoxKey struct{}

// WithFarmID adds the authenticated farm ID to context. If an outer
// middleware (Logging, Tracing) has stashed a box via farmIDBoxKey, it is
// written through as well, since FarmAuth resolves the farm deeper in the
// chain than those middlewares run and a context value set here is
// otherwise invisible to the *http.Request they already captured.
func WithFarmID(ctx context.Context, farmID domain.FarmId) context.Context {
	if box, ok := ctx.Value(farmIDBoxKey{}).(*domain.FarmId); ok {
		*box = farmID
	}
	return context.WithValue(ctx, FarmIDKey, farmID)
}
