// Copyright (c) 2026 Identra. All rights reserved.

/*
Package auth implements the user identity and access management layer.

It defines the core domain entities (User, AuthResponse) and logic for
authentication, authorization, and account lifecycle.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to user identity.
*/
package auth

import (
	"time"

	"github.com/identra/identra/internal/platform/sec"
)

// # Domain Entities

// User represents a registered member of the Identra platform.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Username     string       `json:"username,omitempty"` // Optional; unique when present.
	PasswordHash string       `json:"-"`                  // Explicitly omitted from JSON for security.
	DisplayName  string       `json:"display_name,omitempty"`
	AvatarURL    string       `json:"avatar_url,omitempty"`
	Role         sec.UserRole `json:"role"`
	Provider     string       `json:"provider,omitempty"`    // OAuth provider name ("google", "github").
	ProviderID   string       `json:"provider_id,omitempty"` // Identity ID issued by the provider.
	IsVerified   bool         `json:"is_verified"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// AuthResponse is the transient credential bundle returned from
// login/register/refresh/OAuth flows. It is never persisted.
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail           = "email"
	FieldUsername        = "username"
	FieldPassword        = "password"
	FieldDisplayName     = "display_name"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldAccessToken     = "access_token"
	FieldRefreshToken    = "refresh_token"
	FieldMessage         = "message"
)
