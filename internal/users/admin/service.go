// Copyright (c) 2026 Identra. All rights reserved.

/*
Package admin implements user directory management: listing, lookups, profile
updates, role assignment, and account deactivation.

It builds on the auth package's user repository and adds a Redis read-through
cache in front of profile lookups.
*/
package admin

import (
	"context"
	"errors"
	"log/slog"

	"github.com/identra/identra/internal/platform/apperr"
	"github.com/identra/identra/internal/platform/sec"
	"github.com/identra/identra/internal/platform/validate"
	"github.com/identra/identra/internal/users/auth"
	"github.com/identra/identra/pkg/pagination"
)

// # Service

// Service implements the user management use cases.
type Service struct {
	users  auth.UserRepository
	cache  ProfileCache
	logger *slog.Logger
}

// NewService wires the user management service with its dependencies.
func NewService(users auth.UserRepository, cache ProfileCache, logger *slog.Logger) *Service {
	return &Service{users: users, cache: cache, logger: logger}
}

// # Listing and Lookup

// List returns one page of user accounts with pagination metadata.
func (service *Service) List(ctx context.Context, params pagination.Params) ([]auth.User, pagination.Meta, error) {
	users, total, err := service.users.List(ctx, params)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return users, pagination.NewMeta(params.Page, params.Limit, total), nil
}

// Get returns a single account, served from the profile cache when possible.
func (service *Service) Get(ctx context.Context, userID string) (*auth.User, error) {
	if err := validate.New().ObjectID("id", userID).Err(); err != nil {
		return nil, err
	}

	cached, err := service.cache.Get(ctx, userID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		// The cache is an optimization; a broken Redis must not take
		// profile reads down with it.
		service.logger.Warn("profile cache read failed",
			slog.String("user_id", userID), slog.Any("error", err))
	}

	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := service.cache.Set(ctx, user); err != nil {
		service.logger.Warn("profile cache write failed",
			slog.String("user_id", userID), slog.Any("error", err))
	}
	return user, nil
}

// # Administrative Mutations

// CreateInput carries the payload for an admin-created account.
type CreateInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Validate checks the admin create payload.
func (input *CreateInput) Validate() error {
	v := validate.New().
		Required(auth.FieldEmail, input.Email).
		Email(auth.FieldEmail, input.Email).
		Required(auth.FieldPassword, input.Password).
		MinLen(auth.FieldPassword, input.Password, 8).
		MaxLen(auth.FieldPassword, input.Password, 128).
		MaxLen(auth.FieldDisplayName, input.DisplayName, 100)
	if input.Username != "" {
		v.Username(auth.FieldUsername, input.Username)
	}
	if input.Role != "" {
		v.OneOf("role", input.Role,
			string(sec.RoleUser), string(sec.RoleModerator), string(sec.RoleAdmin))
	}
	return v.Err()
}

// Create provisions an account with an explicit role. Admin-created accounts
// start verified since the operator vouches for the email.
func (service *Service) Create(ctx context.Context, input CreateInput) (*auth.User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	hash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	role := sec.UserRole(input.Role)
	if input.Role == "" {
		role = sec.RoleUser
	}

	user := &auth.User{
		Email:        auth.NormalizeEmail(input.Email),
		Username:     input.Username,
		PasswordHash: hash,
		DisplayName:  input.DisplayName,
		Role:         role,
		IsVerified:   true,
		IsActive:     true,
	}
	if err := service.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateInput carries the admin-editable account fields. Nil pointers mean
// "leave unchanged" so partial PATCH payloads work as expected.
type UpdateInput struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Role        *string `json:"role"`
	IsActive    *bool   `json:"is_active"`
}

// Validate checks the admin update payload.
func (input *UpdateInput) Validate() error {
	v := validate.New()
	if input.Username != nil && *input.Username != "" {
		v.Username(auth.FieldUsername, *input.Username)
	}
	if input.DisplayName != nil {
		v.MaxLen(auth.FieldDisplayName, *input.DisplayName, 100)
	}
	if input.Role != nil {
		v.OneOf("role", *input.Role,
			string(sec.RoleUser), string(sec.RoleModerator), string(sec.RoleAdmin))
	}
	return v.Err()
}

// Update applies a partial update to an account, including role changes,
// and invalidates the cached profile.
func (service *Service) Update(ctx context.Context, userID string, input UpdateInput) (*auth.User, error) {
	if err := validate.New().ObjectID("id", userID).Err(); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		user.Username = *input.Username
	}
	if input.DisplayName != nil {
		user.DisplayName = *input.DisplayName
	}
	if input.AvatarURL != nil {
		user.AvatarURL = *input.AvatarURL
	}
	if input.Role != nil {
		user.Role = sec.UserRole(*input.Role)
	}

	if err := service.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if input.IsActive != nil && *input.IsActive != user.IsActive {
		if err := service.users.SetActive(ctx, userID, *input.IsActive); err != nil {
			return nil, err
		}
		user.IsActive = *input.IsActive
	}

	service.invalidate(ctx, userID)
	return user, nil
}

// Deactivate soft-deletes an account: the document stays, but the account can
// no longer authenticate or refresh its session.
func (service *Service) Deactivate(ctx context.Context, userID string) error {
	if err := validate.New().ObjectID("id", userID).Err(); err != nil {
		return err
	}
	if err := service.users.SetActive(ctx, userID, false); err != nil {
		return err
	}
	service.invalidate(ctx, userID)
	return nil
}

// # Self-Service Profile

// ProfileInput carries the fields a user may change on their own account.
type ProfileInput struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

// Validate checks the self-service profile payload.
func (input *ProfileInput) Validate() error {
	v := validate.New()
	if input.Username != nil && *input.Username != "" {
		v.Username(auth.FieldUsername, *input.Username)
	}
	if input.DisplayName != nil {
		v.MaxLen(auth.FieldDisplayName, *input.DisplayName, 100)
	}
	return v.Err()
}

// UpdateProfile applies a partial update to the caller's own profile.
// Role and activation are deliberately not reachable from here.
func (service *Service) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*auth.User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		user.Username = *input.Username
	}
	if input.DisplayName != nil {
		user.DisplayName = *input.DisplayName
	}
	if input.AvatarURL != nil {
		user.AvatarURL = *input.AvatarURL
	}

	if err := service.users.Update(ctx, user); err != nil {
		return nil, err
	}

	service.invalidate(ctx, userID)
	return user, nil
}

// invalidate drops the cached profile, logging instead of failing: the next
// read repopulates the cache from the repository.
func (service *Service) invalidate(ctx context.Context, userID string) {
	if err := service.cache.Invalidate(ctx, userID); err != nil {
		service.logger.Warn("profile cache invalidation failed",
			slog.String("user_id", userID), slog.Any("error", err))
	}
}
