// Copyright (c) 2026 Identra. All rights reserved.

package sec_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra/identra/internal/platform/sec"
)

func newTokenService(t *testing.T, accessTTL, refreshTTL time.Duration) *sec.TokenService {
	t.Helper()
	service, err := sec.NewTokenService(
		"access-secret-for-tests", "refresh-secret-for-tests", "identra.app",
		accessTTL, refreshTTL)
	require.NoError(t, err)
	return service
}

/*
TestNewTokenService_Validation rejects empty or reused secrets.
*/
func TestNewTokenService_Validation(t *testing.T) {
	tests := []struct {
		name          string
		accessSecret  string
		refreshSecret string
	}{
		{"empty_access_secret", "", "refresh"},
		{"empty_refresh_secret", "access", ""},
		{"identical_secrets", "shared", "shared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sec.NewTokenService(tt.accessSecret, tt.refreshSecret, "identra.app", time.Minute, time.Hour)
			assert.Error(t, err)
		})
	}
}

/*
TestTokenService_RoundTrip checks that generated tokens decode back to the
identity they were minted for.
*/
func TestTokenService_RoundTrip(t *testing.T) {
	service := newTokenService(t, 15*time.Minute, 168*time.Hour)

	accessToken, err := service.GenerateAccessToken("user-123", "tai@example.com", sec.RoleModerator)
	require.NoError(t, err)

	claims, err := service.VerifyToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID())
	assert.Equal(t, "tai@example.com", claims.Email)
	assert.Equal(t, sec.RoleModerator, claims.Role)
	assert.Equal(t, sec.TokenTypeAccess, claims.TokenType)

	refreshToken, err := service.GenerateRefreshToken("user-123", "tai@example.com", sec.RoleModerator)
	require.NoError(t, err)

	refreshClaims, err := service.VerifyRefreshToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", refreshClaims.UserID())
	assert.Equal(t, sec.TokenTypeRefresh, refreshClaims.TokenType)
}

/*
TestTokenService_TypeConfusion ensures an access token is rejected by the
refresh verifier and vice versa.
*/
func TestTokenService_TypeConfusion(t *testing.T) {
	service := newTokenService(t, 15*time.Minute, time.Hour)

	accessToken, err := service.GenerateAccessToken("user-1", "a@b.com", sec.RoleUser)
	require.NoError(t, err)
	refreshToken, err := service.GenerateRefreshToken("user-1", "a@b.com", sec.RoleUser)
	require.NoError(t, err)

	_, err = service.VerifyRefreshToken(accessToken)
	assert.Error(t, err)
	_, err = service.VerifyToken(refreshToken)
	assert.Error(t, err)
}

/*
TestTokenService_Expired rejects tokens past their lifetime.
*/
func TestTokenService_Expired(t *testing.T) {
	service := newTokenService(t, -time.Minute, -time.Minute)

	accessToken, err := service.GenerateAccessToken("user-1", "a@b.com", sec.RoleUser)
	require.NoError(t, err)
	refreshToken, err := service.GenerateRefreshToken("user-1", "a@b.com", sec.RoleUser)
	require.NoError(t, err)

	_, err = service.VerifyToken(accessToken)
	assert.Error(t, err)
	_, err = service.VerifyRefreshToken(refreshToken)
	assert.Error(t, err)
}

/*
TestTokenService_Tampered rejects tokens signed with a different secret or
with a modified payload.
*/
func TestTokenService_Tampered(t *testing.T) {
	service := newTokenService(t, 15*time.Minute, time.Hour)

	t.Run("foreign_signature", func(t *testing.T) {
		foreign, err := sec.NewTokenService(
			"other-access-secret", "other-refresh-secret", "identra.app",
			15*time.Minute, time.Hour)
		require.NoError(t, err)

		token, err := foreign.GenerateRefreshToken("user-1", "a@b.com", sec.RoleUser)
		require.NoError(t, err)

		_, err = service.VerifyRefreshToken(token)
		assert.Error(t, err)
	})

	t.Run("modified_payload", func(t *testing.T) {
		token, err := service.GenerateRefreshToken("user-1", "a@b.com", sec.RoleUser)
		require.NoError(t, err)

		// Flip a character in the payload segment.
		tampered := []byte(token)
		mid := len(tampered) / 2
		if tampered[mid] == 'a' {
			tampered[mid] = 'b'
		} else {
			tampered[mid] = 'a'
		}

		_, err = service.VerifyRefreshToken(string(tampered))
		assert.Error(t, err)
	})

	t.Run("alg_none", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &sec.AuthClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "identra.app"},
			TokenType:        sec.TokenTypeAccess,
		})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.VerifyToken(token)
		assert.Error(t, err)
	})
}

/*
TestTokenService_WrongIssuer rejects tokens minted for another deployment.
*/
func TestTokenService_WrongIssuer(t *testing.T) {
	other, err := sec.NewTokenService(
		"access-secret-for-tests", "refresh-secret-for-tests", "other.app",
		15*time.Minute, time.Hour)
	require.NoError(t, err)

	token, err := other.GenerateAccessToken("user-1", "a@b.com", sec.RoleUser)
	require.NoError(t, err)

	service := newTokenService(t, 15*time.Minute, time.Hour)
	_, err = service.VerifyToken(token)
	assert.Error(t, err)
}
