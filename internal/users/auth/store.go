// Copyright (c) 2026 Identra. All rights reserved.

package auth

import (
	"context"
	"time"

	"github.com/identra/identra/pkg/pagination"
)

// UserRepository defines the data access contract for user accounts.
//
// # Review Process
//
// This interface is placed in a separate file from user.go so entity changes
// and storage-contract changes can be reviewed independently by the team.
//
// # Implementations
//
// The canonical implementation for Identra is MongoDB (store_mongo.go).
type UserRepository interface {
	// FindByID returns the account with the given document ID.
	//
	// Returns [apperr.NotFound] if the account does not exist.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByEmail returns the account with the given email.
	//
	// Returns [apperr.NotFound] if no user is registered with this email.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByUsername returns the account with the given username.
	//
	// Returns [apperr.NotFound] if the username is available.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// FindByProvider returns the account linked to an OAuth identity.
	//
	// Returns [apperr.NotFound] if no account carries this (provider, providerID).
	FindByProvider(ctx context.Context, provider, providerID string) (*User, error)

	// Create persists a brand-new user account to the storage and assigns its ID.
	//
	// Returns [apperr.Conflict] if a unique index (email/username) fails.
	Create(ctx context.Context, user *User) error

	// Update persists changes to mutable profile fields (DisplayName, AvatarURL,
	// Username, Role, OAuth linkage). Passwords must be updated via [UpdatePassword].
	Update(ctx context.Context, user *User) error

	// UpdatePassword replaces only the user's password hash.
	// This is separate from [Update] to prevent accidental overwrites
	// during unrelated profile updates.
	UpdatePassword(ctx context.Context, userID, newHash string) error

	// MarkVerified flags the account's email address as confirmed.
	MarkVerified(ctx context.Context, userID string) error

	// SetActive toggles the soft-delete flag. Deactivated accounts keep their
	// document but can no longer authenticate.
	SetActive(ctx context.Context, userID string, active bool) error

	// List returns one page of accounts ordered by creation time (newest
	// first) along with the total account count.
	List(ctx context.Context, params pagination.Params) ([]User, int, error)
}

// ResetTokenRepository defines the contract for storing volatile password reset tokens.
type ResetTokenRepository interface {
	// Set stores a reset token associated with a userID for a limited duration.
	Set(ctx context.Context, token string, userID string, ttl time.Duration) error

	// Get retrieves the userID associated with a given reset token.
	Get(ctx context.Context, token string) (string, error)

	// Delete removes a reset token after successful use.
	Delete(ctx context.Context, token string) error
}

// VerificationTokenRepository defines the contract for storing volatile
// email verification tokens.
type VerificationTokenRepository interface {
	// Set stores a verification token associated with a userID for a limited duration.
	Set(ctx context.Context, token string, userID string, ttl time.Duration) error

	// Get retrieves the userID associated with a given verification token.
	Get(ctx context.Context, token string) (string, error)

	// Delete removes a verification token after successful use.
	Delete(ctx context.Context, token string) error
}

// StateRepository defines the contract for single-use OAuth state values.
//
// # CSRF Protection
//
// The state issued with the authorization redirect must round-trip through
// the provider unchanged; consuming it atomically prevents replay.
type StateRepository interface {
	// Set stores a state value for the given provider with a limited duration.
	Set(ctx context.Context, state string, provider string, ttl time.Duration) error

	// Consume validates and deletes a state value in one step.
	// Returns the provider the state was issued for.
	Consume(ctx context.Context, state string) (string, error)
}
