// Copyright (c) 2026 Identra. All rights reserved.

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via the [TokenProvider] interface.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminators embedded in the 'typ' claim so an access token
// can never be replayed against the refresh endpoint and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AuthClaims represents the payload embedded inside an Identra JWT.
//
// # Why custom claims?
//
// By embedding the user's email and role directly inside the JWT, the
// authentication middleware can reconstruct the active user context
// WITHOUT querying the database on every single API request. This provides
// massive read-scalability.
type AuthClaims struct {
	jwt.RegisteredClaims

	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	TokenType string   `json:"typ"`
}

// UserID returns the account identifier carried in the standard 'sub' claim.
func (c *AuthClaims) UserID() string { return c.Subject }

// TokenService handles generation and verification of JWT tokens using HS256.
//
// # Key Separation
//
// Access and refresh tokens are signed with independent secrets. Refresh
// tokens are fully stateless: there is no server-side session store, so
// revocation is bounded by the access-token lifetime.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService creates a new TokenService.
func NewTokenService(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("sec: JWT secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("sec: access and refresh secrets must differ")
	}

	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// AccessTokenTTL returns the configured access token lifetime.
func (service *TokenService) AccessTokenTTL() time.Duration { return service.accessTTL }

// RefreshTokenTTL returns the configured refresh token lifetime.
func (service *TokenService) RefreshTokenTTL() time.Duration { return service.refreshTTL }

// GenerateAccessToken creates a new short-lived JWT access token for a user.
func (service *TokenService) GenerateAccessToken(userID, email string, role UserRole) (string, error) {
	return service.generate(userID, email, role, TokenTypeAccess, service.accessTTL, service.accessSecret)
}

// GenerateRefreshToken creates a new long-lived JWT refresh token for a user.
func (service *TokenService) GenerateRefreshToken(userID, email string, role UserRole) (string, error) {
	return service.generate(userID, email, role, TokenTypeRefresh, service.refreshTTL, service.refreshSecret)
}

// generate signs a token with the given type, lifetime, and secret.
func (service *TokenService) generate(userID, email string, role UserRole, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(ttl)),
		},
		Email:     email,
		Role:      role,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature and validity of a JWT access token.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	return service.verify(tokenString, TokenTypeAccess, service.accessSecret)
}

// VerifyRefreshToken checks the signature and validity of a JWT refresh token.
func (service *TokenService) VerifyRefreshToken(tokenString string) (*AuthClaims, error) {
	return service.verify(tokenString, TokenTypeRefresh, service.refreshSecret)
}

// verify parses and validates a token against the given secret and type.
func (service *TokenService) verify(tokenString, expectedType string, secret []byte) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(service.issuer))

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	if claims.TokenType != expectedType {
		return nil, fmt.Errorf("sec: token type mismatch")
	}

	return claims, nil
}
