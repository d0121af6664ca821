// Copyright (c) 2026 Identra. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/identra/identra/internal/platform/apperr"
	"github.com/identra/identra/internal/platform/sec"
	"github.com/identra/identra/internal/platform/validate"
)

// # Service

// Service implements the authentication and account lifecycle use cases.
type Service struct {
	users        UserRepository
	resetTokens  ResetTokenRepository
	verifyTokens VerificationTokenRepository
	states       StateRepository
	tokens       *sec.TokenService
	providers    map[string]ProviderClient
	logger       *slog.Logger
}

// NewService wires the authentication service with its dependencies.
// Pass only the providers that are actually configured; flows for absent
// providers fail with NotFound.
func NewService(
	users UserRepository,
	resetTokens ResetTokenRepository,
	verifyTokens VerificationTokenRepository,
	states StateRepository,
	tokens *sec.TokenService,
	providers []ProviderClient,
	logger *slog.Logger,
) *Service {
	byName := make(map[string]ProviderClient, len(providers))
	for _, provider := range providers {
		byName[provider.Name()] = provider
	}
	return &Service{
		users:        users,
		resetTokens:  resetTokens,
		verifyTokens: verifyTokens,
		states:       states,
		tokens:       tokens,
		providers:    byName,
		logger:       logger,
	}
}

// # Registration

// RegisterInput carries the payload for a new local account.
type RegisterInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Validate checks the registration payload.
func (input *RegisterInput) Validate() error {
	v := validate.New().
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		MaxLen(FieldPassword, input.Password, 128).
		MaxLen(FieldDisplayName, input.DisplayName, 100)
	if input.Username != "" {
		v.Username(FieldUsername, input.Username)
	}
	return v.Err()
}

// Register creates a local account, stores an email verification token, and
// signs the user in.
//
// The uniqueness of email and username is enforced by MongoDB indexes; a
// duplicate surfaces as a 409 Conflict from the repository.
func (service *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	hash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &User{
		Email:        NormalizeEmail(input.Email),
		Username:     input.Username,
		PasswordHash: hash,
		DisplayName:  input.DisplayName,
		Role:         sec.RoleUser,
		IsActive:     true,
	}
	if err := service.users.Create(ctx, user); err != nil {
		return nil, err
	}

	// The verification token would be delivered out of band (email). Failure
	// to stage it must not fail the registration itself.
	if token, err := service.stageVerificationToken(ctx, user.ID); err != nil {
		service.logger.Warn("verification token staging failed",
			slog.String("user_id", user.ID), slog.Any("error", err))
	} else {
		service.logger.Info("verification token issued",
			slog.String("user_id", user.ID), slog.String("token_digest", sec.HashToken(token)))
	}

	return service.issueTokens(user)
}

// # Login

// LoginInput carries local sign-in credentials. Identifier accepts either
// the account email or the username.
type LoginInput struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Validate checks the login payload.
func (input *LoginInput) Validate() error {
	return validate.New().
		Required(FieldEmail, input.Identifier).
		Required(FieldPassword, input.Password).
		Err()
}

// Login authenticates a local account by email or username.
//
// Lookup failures and password mismatches return the same generic 401 so the
// endpoint cannot be used to enumerate accounts.
func (service *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	user, err := service.findByIdentifier(ctx, input.Identifier)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, err
	}

	if user.PasswordHash == "" || !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid credentials")
	}

	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}

	return service.issueTokens(user)
}

// findByIdentifier resolves a login identifier to an account, trying email
// first and falling back to username.
func (service *Service) findByIdentifier(ctx context.Context, identifier string) (*User, error) {
	if strings.Contains(identifier, "@") {
		return service.users.FindByEmail(ctx, NormalizeEmail(identifier))
	}
	return service.users.FindByUsername(ctx, identifier)
}

// # Session Refresh

// RefreshSession validates a refresh token and issues a fresh token pair.
//
// The user is re-fetched so accounts deactivated after the token was minted
// cannot extend their session.
func (service *Service) RefreshSession(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := service.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("Refresh token is invalid or has expired").WithCause(err)
	}

	user, err := service.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("Session is no longer valid")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}

	return service.issueTokens(user)
}

// Me returns the authenticated user's own account.
func (service *Service) Me(ctx context.Context, userID string) (*User, error) {
	return service.users.FindByID(ctx, userID)
}

// # Password Reset

// RequestPasswordReset stages a single-use reset token for the account
// registered under email and returns it for out-of-band delivery.
func (service *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if err := validate.New().Required(FieldEmail, email).Email(FieldEmail, email).Err(); err != nil {
		return "", err
	}

	user, err := service.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", err
	}

	token, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return "", apperr.Internal(err)
	}
	if err := service.resetTokens.Set(ctx, token, user.ID, ResetTokenTTL); err != nil {
		return "", err
	}

	service.logger.Info("password reset token issued",
		slog.String("user_id", user.ID), slog.String("token_digest", sec.HashToken(token)))
	return token, nil
}

// ResetPassword redeems a reset token and replaces the account password.
func (service *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	err := validate.New().
		Required(FieldToken, token).
		Required(FieldNewPassword, newPassword).
		MinLen(FieldNewPassword, newPassword, 8).
		MaxLen(FieldNewPassword, newPassword, 128).
		Err()
	if err != nil {
		return err
	}

	userID, err := service.resetTokens.Get(ctx, token)
	if err != nil {
		return err
	}

	hash, err := sec.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := service.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	if err := service.resetTokens.Delete(ctx, token); err != nil {
		service.logger.Warn("reset token cleanup failed", slog.Any("error", err))
	}
	return nil
}

// ChangePassword replaces the password of an authenticated account.
//
// The current password must verify (401 otherwise), and the new password must
// differ from the current one (422 otherwise).
func (service *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	err := validate.New().
		Required(FieldCurrentPassword, currentPassword).
		Required(FieldNewPassword, newPassword).
		MinLen(FieldNewPassword, newPassword, 8).
		MaxLen(FieldNewPassword, newPassword, 128).
		Err()
	if err != nil {
		return err
	}

	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.PasswordHash == "" || !sec.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}
	if currentPassword == newPassword {
		return apperr.Unprocessable("New password must be different from the current password")
	}

	hash, err := sec.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	return service.users.UpdatePassword(ctx, userID, hash)
}

// # Email Verification

// VerifyEmail redeems a verification token and marks the account verified.
func (service *Service) VerifyEmail(ctx context.Context, token string) error {
	if err := validate.New().Required(FieldToken, token).Err(); err != nil {
		return err
	}

	userID, err := service.verifyTokens.Get(ctx, token)
	if err != nil {
		return err
	}
	if err := service.users.MarkVerified(ctx, userID); err != nil {
		return err
	}

	if err := service.verifyTokens.Delete(ctx, token); err != nil {
		service.logger.Warn("verification token cleanup failed", slog.Any("error", err))
	}
	return nil
}

// stageVerificationToken creates and stores a fresh email verification token.
func (service *Service) stageVerificationToken(ctx context.Context, userID string) (string, error) {
	token, err := sec.GenerateSecureToken(VerificationTokenLength)
	if err != nil {
		return "", fmt.Errorf("verification_token_generate_failed: %w", err)
	}
	if err := service.verifyTokens.Set(ctx, token, userID, VerificationTokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// # OAuth Flows

// AuthorizationURL begins an OAuth flow: it stages a single-use state value
// and returns the provider's authorization redirect URL.
func (service *Service) AuthorizationURL(ctx context.Context, providerName string) (string, error) {
	provider, ok := service.providers[providerName]
	if !ok {
		return "", apperr.NotFound("OAuth provider")
	}

	state, err := sec.GenerateSecureToken(OAuthStateLength)
	if err != nil {
		return "", apperr.Internal(err)
	}
	if err := service.states.Set(ctx, state, providerName, OAuthStateTTL); err != nil {
		return "", err
	}

	return provider.AuthURL(state), nil
}

// CompleteOAuth finishes an OAuth flow: it consumes the state, exchanges the
// code, and signs the resolved account in.
func (service *Service) CompleteOAuth(ctx context.Context, providerName, state, code string) (*AuthResponse, error) {
	if err := validate.New().Required("state", state).Required("code", code).Err(); err != nil {
		return nil, err
	}

	provider, ok := service.providers[providerName]
	if !ok {
		return nil, apperr.NotFound("OAuth provider")
	}

	issuedFor, err := service.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	if issuedFor != providerName {
		return nil, apperr.Unauthorized("OAuth state does not match the provider")
	}

	identity, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := service.resolveIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}

	return service.issueTokens(user)
}

// resolveIdentity maps a provider identity to exactly one local account:
// an account already linked to (provider, providerID) is reused, an existing
// account with the same email gets linked, and otherwise a new account is
// created. Provider emails are trusted as verified.
func (service *Service) resolveIdentity(ctx context.Context, identity *ProviderIdentity) (*User, error) {
	user, err := service.users.FindByProvider(ctx, identity.Provider, identity.ProviderID)
	if err == nil {
		return user, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	// Accounts are keyed by email: an identity without one would be inserted
	// with an empty email and collide on the unique index.
	if identity.Email == "" {
		return nil, apperr.Unauthorized("OAuth provider returned no email")
	}

	existing, err := service.users.FindByEmail(ctx, NormalizeEmail(identity.Email))
	if err == nil {
		existing.Provider = identity.Provider
		existing.ProviderID = identity.ProviderID
		existing.IsVerified = true
		if existing.AvatarURL == "" {
			existing.AvatarURL = identity.AvatarURL
		}
		if err := service.users.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	created := &User{
		Email:       NormalizeEmail(identity.Email),
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		Role:        sec.RoleUser,
		Provider:    identity.Provider,
		ProviderID:  identity.ProviderID,
		IsVerified:  true,
		IsActive:    true,
	}
	if err := service.users.Create(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// # Token Issuance

// issueTokens mints a fresh access/refresh pair for the user.
func (service *Service) issueTokens(user *User) (*AuthResponse, error) {
	accessToken, err := service.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	refreshToken, err := service.tokens.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// RefreshTokenTTL exposes the refresh token lifetime for cookie expiry.
func (service *Service) RefreshTokenTTL() (ttl int) {
	return int(service.tokens.RefreshTokenTTL().Seconds())
}

// NormalizeEmail lowercases and trims an email address so lookups and unique
// indexes are case-insensitive in practice. Every write path that stores an
// email must pass through this, or exact-match lookups will miss.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
