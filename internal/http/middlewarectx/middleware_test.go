package middlewarectx_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/jwt"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestJWTMiddleware(t *testing.T) {
	maker := jwt.NewJWTMaker("secret", time.Hour)
	valid, err := maker.GenerateToken("user_1")
	require.NoError(t, err)
	foreign, err := jwt.NewJWTMaker("other", time.Hour).GenerateToken("user_1")
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
		wantCalled     bool
	}{
		{name: "missing Authorization header", wantStatusCode: http.StatusUnauthorized},
		{name: "invalid prefix", authHeader: "Basic " + valid, wantStatusCode: http.StatusUnauthorized},
		{name: "empty token", authHeader: "Bearer  ", wantStatusCode: http.StatusUnauthorized},
		{name: "foreign signature", authHeader: "Bearer " + foreign, wantStatusCode: http.StatusUnauthorized},
		{name: "valid token", authHeader: "Bearer " + valid, wantStatusCode: http.StatusOK, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				id, ok := middlewarectx.AppUserIDFrom(r.Context())
				assert.True(t, ok)
				assert.Equal(t, "user_1", id)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			middlewarectx.JWTMiddleware(maker, newNoopLogger())(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatusCode, rr.Code)
			assert.Equal(t, tt.wantCalled, called)
		})
	}
}

func TestWebhookAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		authHeader string
		wantCode   int
	}{
		{name: "valid secret", secret: "whsec", authHeader: "Bearer whsec", wantCode: http.StatusNoContent},
		{name: "wrong secret", secret: "whsec", authHeader: "Bearer nope", wantCode: http.StatusUnauthorized},
		{name: "missing header", secret: "whsec", wantCode: http.StatusUnauthorized},
		{name: "secret not configured", secret: "", authHeader: "Bearer ", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			middlewarectx.WebhookAuthMiddleware(tt.secret, newNoopLogger())(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := middlewarectx.RateLimitMiddleware(0.001, 2, newNoopLogger())(next)

	codes := make([]int, 0, 3)
	for range 3 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// у каждого экземпляра свой лимит
	rr := httptest.NewRecorder()
	middlewarectx.RateLimitMiddleware(0.001, 1, newNoopLogger())(next).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
