package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/api/middleware"
	"github.com/phrazzld/scry-jobs/internal/api/shared"
	"github.com/phrazzld/scry-jobs/internal/platform/logger"
	"github.com/phrazzld/scry-jobs/internal/service/auth"
	"github.com/phrazzld/scry-jobs/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJWT struct {
	err error
}

func (s stubJWT) GenerateToken(context.Context, uuid.UUID) (string, error) { return "", nil }

func (s stubJWT) ValidateToken(context.Context, string) (*auth.Claims, error) {
	return nil, s.err
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	jwtSvc := testutils.NewTestJWTService(t)
	userID := uuid.New()

	var gotUser uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.GetUserID(r)
		require.True(t, ok)
		gotUser = id
		w.WriteHeader(http.StatusNoContent)
	})
	handler := middleware.NewAuthMiddleware(jwtSvc).Authenticate(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", testutils.GenerateAuthHeader(t, jwtSvc, userID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, userID, gotUser)
}

func TestAuthenticateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     string
		svcErr     error
		wantStatus int
		wantBody   string
	}{
		{"no header", "", nil, http.StatusUnauthorized, "Authorization header required"},
		{"basic scheme", "Basic abc", nil, http.StatusUnauthorized, "Invalid authorization format"},
		{"empty token", "Bearer ", nil, http.StatusUnauthorized, "Invalid authorization format"},
		{"expired", "Bearer t", auth.ErrExpiredToken, http.StatusUnauthorized, "Token expired"},
		{"wrong type", "Bearer t", auth.ErrWrongTokenType, http.StatusUnauthorized, "Invalid token"},
		{"unexpected", "Bearer t", errors.New("keystore offline"), http.StatusInternalServerError, "Authentication error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
			handler := middleware.NewAuthMiddleware(stubJWT{err: tc.svcErr}).Authenticate(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantBody)
		})
	}
}

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	log, buf := logger.NewTestLogger()

	var traceID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	middleware.NewTraceMiddleware(log)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Len(t, traceID, 32)
	assert.True(t, buf.Contains(traceID), "handler log should carry the trace ID")
}
