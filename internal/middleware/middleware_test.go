package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedplus/core/internal/domain"
)

func TestRequestID_GeneratesID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := GetRequestID(r.Context())
		assert.NotEmpty(t, reqID)
		w.Write([]byte(reqID))
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	// Should set header
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_UsesProvidedID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := GetRequestID(r.Context())
		w.Write([]byte(reqID))
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "custom-id-123")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "custom-id-123", string(body))
	assert.Equal(t, "custom-id-123", rec.Header().Get("X-Request-ID"))
}

func TestLogging_LogsRequest(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))

	req := httptest.NewRequest("GET", "/test?foo=bar", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFarmContext_WithAndGet(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	_, ok := GetFarmID(req.Context())
	assert.False(t, ok)

	ctx := WithFarmID(req.Context(), domain.FarmId(42))
	farmID, ok := GetFarmID(ctx)
	assert.True(t, ok)
	assert.Equal(t, domain.FarmId(42), farmID)
}

func TestGetRequestID_ReturnsEmpty(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	reqID := GetRequestID(req.Context())
	assert.Empty(t, reqID)
}

func TestFarmAuth_DevBypass(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	auth := NewFarmAuth(slog.New(slog.NewTextHandler(io.Discard, nil)), "secret")

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		farmID, ok := GetFarmID(r.Context())
		assert.True(t, ok)
		assert.Equal(t, domain.FarmId(7), farmID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Dev-Farm-ID", "7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFarmAuth_SignAndValidate(t *testing.T) {
	auth := NewFarmAuth(slog.New(slog.NewTextHandler(io.Discard, nil)), "secret")
	token, err := auth.Sign(domain.FarmId(99), time.Hour)
	require.NoError(t, err)

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		farmID, ok := GetFarmID(r.Context())
		assert.True(t, ok)
		assert.Equal(t, domain.FarmId(99), farmID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFarmAuth_MissingHeader(t *testing.T) {
	auth := NewFarmAuth(slog.New(slog.NewTextHandler(io.Discard, nil)), "secret")
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req = req.WithContext(WithFarmID(req.Context(), domain.FarmId(1)))

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

