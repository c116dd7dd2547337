package testutils

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/config"
	"github.com/phrazzld/scry-jobs/internal/service/auth"
	"github.com/stretchr/testify/require"
)

// TestJWTSecret is a signing key long enough to pass config validation.
const TestJWTSecret = "test-secret-that-is-at-least-32-characters-long"

// NewTestJWTService returns a JWT service signing with TestJWTSecret.
func NewTestJWTService(t *testing.T) auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            TestJWTSecret,
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err, "Failed to create JWT service")
	return svc
}

// GenerateAuthHeader returns an "Authorization" header value for userID.
func GenerateAuthHeader(t *testing.T, svc auth.JWTService, userID uuid.UUID) string {
	t.Helper()
	token, err := svc.GenerateToken(context.Background(), userID)
	require.NoError(t, err, "Failed to generate token")
	return "Bearer " + token
}
