package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/internal/models"
)

func newTestJWTService(t *testing.T, clock func() time.Time) *JWTService {
	t.Helper()

	svc, err := NewJWTService(JWTConfig{
		Secret:   "test-secret",
		Issuer:   "taskhive",
		Audience: "taskhive-api",
		TTL:      time.Hour,
		Clock:    clock,
	})
	require.NoError(t, err)
	return svc
}

func TestJWTServiceRoundTrip(t *testing.T) {
	svc := newTestJWTService(t, nil)

	user := &models.User{
		UID:         "uid-123",
		Email:       "user@example.com",
		DisplayName: "User",
		Provider:    "google",
	}

	token, err := svc.GenerateSessionToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateSessionToken(token)
	require.NoError(t, err)
	require.Equal(t, "uid-123", claims.UID)
	require.Equal(t, "user@example.com", claims.Email)
	require.Equal(t, "google", claims.Provider)
	require.Equal(t, "taskhive", claims.Issuer)
}

func TestJWTServiceRejectsExpiredToken(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWTService(t, func() time.Time { return current })

	token, err := svc.GenerateSessionToken(&models.User{UID: "uid-exp", Email: "exp@example.com"})
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, err = svc.ValidateSessionToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTServiceRejectsWrongIssuerOrAudience(t *testing.T) {
	issuing, err := NewJWTService(JWTConfig{
		Secret:   "test-secret",
		Issuer:   "someone-else",
		Audience: "other-api",
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	token, err := issuing.GenerateSessionToken(&models.User{UID: "uid-iss", Email: "iss@example.com"})
	require.NoError(t, err)

	validating := newTestJWTService(t, nil)
	_, err = validating.ValidateSessionToken(token)
	require.Error(t, err)
}

func TestJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}

func TestJWTServiceRequiresUserFields(t *testing.T) {
	svc := newTestJWTService(t, nil)

	_, err := svc.GenerateSessionToken(nil)
	require.Error(t, err)

	_, err = svc.GenerateSessionToken(&models.User{UID: "u"})
	require.Error(t, err)
}
