// Copyright (c) 2026 Identra. All rights reserved.

package auth_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra/identra/internal/platform/apperr"
	"github.com/identra/identra/internal/platform/sec"
	"github.com/identra/identra/internal/users/admin"
	"github.com/identra/identra/internal/users/auth"
	"github.com/identra/identra/pkg/pagination"
)

// # In-Memory Fakes

// memoryUserRepository is a map-backed UserRepository that mimics MongoDB's
// unique index behavior for email and username.
type memoryUserRepository struct {
	seq   int
	users map[string]*auth.User
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*auth.User)}
}

func (repo *memoryUserRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	if user, ok := repo.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryUserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, user := range repo.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryUserRepository) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	for _, user := range repo.users {
		if user.Username != "" && user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryUserRepository) FindByProvider(_ context.Context, provider, providerID string) (*auth.User, error) {
	for _, user := range repo.users {
		if user.Provider == provider && user.ProviderID == providerID {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryUserRepository) Create(_ context.Context, user *auth.User) error {
	for _, existing := range repo.users {
		if existing.Email == user.Email {
			return apperr.Conflict("User already exists")
		}
		if user.Username != "" && existing.Username == user.Username {
			return apperr.Conflict("User already exists")
		}
	}
	repo.seq++
	user.ID = fmt.Sprintf("user-%d", repo.seq)
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	repo.users[user.ID] = &clone
	return nil
}

func (repo *memoryUserRepository) Update(_ context.Context, user *auth.User) error {
	stored, ok := repo.users[user.ID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.PasswordHash = stored.PasswordHash
	user.IsActive = stored.IsActive
	clone := *user
	repo.users[user.ID] = &clone
	return nil
}

func (repo *memoryUserRepository) UpdatePassword(_ context.Context, userID, newHash string) error {
	user, ok := repo.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.PasswordHash = newHash
	return nil
}

func (repo *memoryUserRepository) MarkVerified(_ context.Context, userID string) error {
	user, ok := repo.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.IsVerified = true
	return nil
}

func (repo *memoryUserRepository) SetActive(_ context.Context, userID string, active bool) error {
	user, ok := repo.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.IsActive = active
	return nil
}

func (repo *memoryUserRepository) List(_ context.Context, params pagination.Params) ([]auth.User, int, error) {
	users := make([]auth.User, 0, len(repo.users))
	for _, user := range repo.users {
		users = append(users, *user)
	}
	return users, len(users), nil
}

// memoryTokenRepository backs the reset/verification token contracts.
type memoryTokenRepository struct {
	values map[string]string
}

func newMemoryTokenRepository() *memoryTokenRepository {
	return &memoryTokenRepository{values: make(map[string]string)}
}

func (repo *memoryTokenRepository) Set(_ context.Context, token, userID string, _ time.Duration) error {
	repo.values[token] = userID
	return nil
}

func (repo *memoryTokenRepository) Get(_ context.Context, token string) (string, error) {
	if userID, ok := repo.values[token]; ok {
		return userID, nil
	}
	return "", apperr.Unauthorized("Token is invalid or has expired")
}

func (repo *memoryTokenRepository) Delete(_ context.Context, token string) error {
	delete(repo.values, token)
	return nil
}

// memoryStateRepository backs the OAuth state contract.
type memoryStateRepository struct {
	states map[string]string
}

func newMemoryStateRepository() *memoryStateRepository {
	return &memoryStateRepository{states: make(map[string]string)}
}

func (repo *memoryStateRepository) Set(_ context.Context, state, provider string, _ time.Duration) error {
	repo.states[state] = provider
	return nil
}

func (repo *memoryStateRepository) Consume(_ context.Context, state string) (string, error) {
	provider, ok := repo.states[state]
	if !ok {
		return "", apperr.Unauthorized("OAuth state is invalid or has expired")
	}
	delete(repo.states, state)
	return provider, nil
}

// stubProvider is a canned ProviderClient that returns a fixed identity.
type stubProvider struct {
	name     string
	identity auth.ProviderIdentity
}

func (provider *stubProvider) Name() string { return provider.name }

func (provider *stubProvider) AuthURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (provider *stubProvider) Exchange(_ context.Context, _ string) (*auth.ProviderIdentity, error) {
	identity := provider.identity
	return &identity, nil
}

// # Fixture

type serviceFixture struct {
	service  *auth.Service
	users    *memoryUserRepository
	resets   *memoryTokenRepository
	verifies *memoryTokenRepository
	states   *memoryStateRepository
	tokens   *sec.TokenService
	provider *stubProvider
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	tokens, err := sec.NewTokenService(
		"test-access-secret", "test-refresh-secret", "identra.app",
		15*time.Minute, time.Hour)
	require.NoError(t, err)

	fixture := &serviceFixture{
		users:    newMemoryUserRepository(),
		resets:   newMemoryTokenRepository(),
		verifies: newMemoryTokenRepository(),
		states:   newMemoryStateRepository(),
		tokens:   tokens,
		provider: &stubProvider{
			name: auth.ProviderGoogle,
			identity: auth.ProviderIdentity{
				Provider:    auth.ProviderGoogle,
				ProviderID:  "google-uid-1",
				Email:       "oauth@example.com",
				DisplayName: "OAuth User",
				AvatarURL:   "https://cdn.example/avatar.png",
			},
		},
	}

	fixture.service = auth.NewService(
		fixture.users, fixture.resets, fixture.verifies, fixture.states,
		tokens, []auth.ProviderClient{fixture.provider},
		slog.New(slog.DiscardHandler))

	return fixture
}

func (fixture *serviceFixture) register(t *testing.T, email, password string) *auth.AuthResponse {
	t.Helper()
	result, err := fixture.service.Register(context.Background(), auth.RegisterInput{
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return result
}

// # Registration

/*
TestService_Register_DuplicateEmail registers the same email twice and
expects a 409 Conflict on the second attempt.
*/
func TestService_Register_DuplicateEmail(t *testing.T) {
	fixture := newServiceFixture(t)

	fixture.register(t, "tai@example.com", "password-123")

	_, err := fixture.service.Register(context.Background(), auth.RegisterInput{
		Email:    "tai@example.com",
		Password: "another-password",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

/*
TestService_Register_Validation rejects malformed payloads before any
repository work happens.
*/
func TestService_Register_Validation(t *testing.T) {
	fixture := newServiceFixture(t)

	tests := []struct {
		name  string
		input auth.RegisterInput
	}{
		{"missing_email", auth.RegisterInput{Password: "password-123"}},
		{"invalid_email", auth.RegisterInput{Email: "not-an-email", Password: "password-123"}},
		{"short_password", auth.RegisterInput{Email: "a@b.com", Password: "short"}},
		{"bad_username", auth.RegisterInput{Email: "a@b.com", Password: "password-123", Username: "no spaces!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fixture.service.Register(context.Background(), tt.input)
			require.Error(t, err)
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "VALIDATION_ERROR", ae.Code)
		})
	}
}

// # Login

/*
TestService_Login_TokenPayload decodes the issued tokens and checks they
carry the user's identity and role.
*/
func TestService_Login_TokenPayload(t *testing.T) {
	fixture := newServiceFixture(t)
	registered := fixture.register(t, "tai@example.com", "password-123")

	result, err := fixture.service.Login(context.Background(), auth.LoginInput{
		Identifier: "tai@example.com",
		Password:   "password-123",
	})
	require.NoError(t, err)

	claims, err := fixture.tokens.VerifyToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID())
	assert.Equal(t, "tai@example.com", claims.Email)
	assert.Equal(t, sec.RoleUser, claims.Role)

	refreshClaims, err := fixture.tokens.VerifyRefreshToken(result.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, refreshClaims.UserID())
}

/*
TestService_Login_Failures covers wrong password, unknown identifier, and
case-insensitive email matching.
*/
func TestService_Login_Failures(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.register(t, "tai@example.com", "password-123")

	t.Run("wrong_password", func(t *testing.T) {
		_, err := fixture.service.Login(context.Background(), auth.LoginInput{
			Identifier: "tai@example.com",
			Password:   "wrong-password",
		})
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("unknown_email_same_error", func(t *testing.T) {
		_, err := fixture.service.Login(context.Background(), auth.LoginInput{
			Identifier: "nobody@example.com",
			Password:   "password-123",
		})
		require.Error(t, err)
		// Account enumeration resistance: same code and message either way.
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
		assert.Equal(t, "Invalid credentials", apperr.As(err).Message)
	})

	t.Run("email_case_insensitive", func(t *testing.T) {
		_, err := fixture.service.Login(context.Background(), auth.LoginInput{
			Identifier: "TAI@Example.COM",
			Password:   "password-123",
		})
		assert.NoError(t, err)
	})
}

/*
TestService_Login_ByUsername resolves non-email identifiers via username.
*/
func TestService_Login_ByUsername(t *testing.T) {
	fixture := newServiceFixture(t)
	_, err := fixture.service.Register(context.Background(), auth.RegisterInput{
		Email:    "tai@example.com",
		Username: "taibv",
		Password: "password-123",
	})
	require.NoError(t, err)

	result, err := fixture.service.Login(context.Background(), auth.LoginInput{
		Identifier: "taibv",
		Password:   "password-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "tai@example.com", result.User.Email)
}

// nullProfileCache satisfies admin.ProfileCache without caching anything.
type nullProfileCache struct{}

func (nullProfileCache) Get(context.Context, string) (*auth.User, error) {
	return nil, admin.ErrCacheMiss
}
func (nullProfileCache) Set(context.Context, *auth.User) error    { return nil }
func (nullProfileCache) Invalidate(context.Context, string) error { return nil }

/*
TestService_Login_AdminCreatedMixedCaseEmail checks that accounts created
through the admin path store a normalized email, so mixed-case creation can
still log in and cannot be shadowed by a duplicate registration.
*/
func TestService_Login_AdminCreatedMixedCaseEmail(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	adminService := admin.NewService(fixture.users, nullProfileCache{}, slog.New(slog.DiscardHandler))

	created, err := adminService.Create(ctx, admin.CreateInput{
		Email:    "Mixed@Example.com",
		Password: "password-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "mixed@example.com", created.Email)

	// Login works with any casing of the same address.
	for _, identifier := range []string{"mixed@example.com", "Mixed@Example.com"} {
		result, err := fixture.service.Login(ctx, auth.LoginInput{
			Identifier: identifier,
			Password:   "password-123",
		})
		require.NoError(t, err, "login as %s", identifier)
		assert.Equal(t, created.ID, result.User.ID)
	}

	// The address is taken: no second account can register under it.
	_, err = fixture.service.Register(ctx, auth.RegisterInput{
		Email:    "mixed@example.com",
		Password: "another-password",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

// # Session Refresh

/*
TestService_RefreshSession_Rejections rejects expired, tampered, and
wrong-type tokens with 401.
*/
func TestService_RefreshSession_Rejections(t *testing.T) {
	fixture := newServiceFixture(t)
	registered := fixture.register(t, "tai@example.com", "password-123")

	t.Run("valid_refresh", func(t *testing.T) {
		result, err := fixture.service.RefreshSession(context.Background(), registered.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, result.User.ID)
		assert.NotEmpty(t, result.AccessToken)
	})

	t.Run("access_token_rejected", func(t *testing.T) {
		_, err := fixture.service.RefreshSession(context.Background(), registered.AccessToken)
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("tampered_token_rejected", func(t *testing.T) {
		tampered := registered.RefreshToken[:len(registered.RefreshToken)-2] + "xx"
		_, err := fixture.service.RefreshSession(context.Background(), tampered)
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("expired_token_rejected", func(t *testing.T) {
		expired, err := sec.NewTokenService(
			"test-access-secret", "test-refresh-secret", "identra.app",
			-time.Minute, -time.Minute)
		require.NoError(t, err)
		token, err := expired.GenerateRefreshToken(registered.User.ID, registered.User.Email, sec.RoleUser)
		require.NoError(t, err)

		_, err = fixture.service.RefreshSession(context.Background(), token)
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})
}

// # Password Lifecycle

/*
TestService_ChangePassword covers the wrong-current (401) and identical
old/new (422) rules.
*/
func TestService_ChangePassword(t *testing.T) {
	fixture := newServiceFixture(t)
	registered := fixture.register(t, "tai@example.com", "password-123")
	userID := registered.User.ID

	t.Run("wrong_current_password", func(t *testing.T) {
		err := fixture.service.ChangePassword(context.Background(), userID, "wrong-current", "new-password-456")
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("identical_new_password", func(t *testing.T) {
		err := fixture.service.ChangePassword(context.Background(), userID, "password-123", "password-123")
		require.Error(t, err)
		assert.Equal(t, "UNPROCESSABLE", apperr.As(err).Code)
	})

	t.Run("successful_change", func(t *testing.T) {
		err := fixture.service.ChangePassword(context.Background(), userID, "password-123", "new-password-456")
		require.NoError(t, err)

		// Old password no longer works, new one does.
		_, err = fixture.service.Login(context.Background(), auth.LoginInput{
			Identifier: "tai@example.com", Password: "password-123",
		})
		assert.Error(t, err)

		_, err = fixture.service.Login(context.Background(), auth.LoginInput{
			Identifier: "tai@example.com", Password: "new-password-456",
		})
		assert.NoError(t, err)
	})
}

/*
TestService_PasswordReset walks the full forgot/reset flow and checks the
token is single-use.
*/
func TestService_PasswordReset(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.register(t, "tai@example.com", "password-123")

	token, err := fixture.service.RequestPasswordReset(context.Background(), "tai@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, fixture.service.ResetPassword(context.Background(), token, "brand-new-password"))

	_, err = fixture.service.Login(context.Background(), auth.LoginInput{
		Identifier: "tai@example.com", Password: "brand-new-password",
	})
	assert.NoError(t, err)

	// Replay must fail: the token was consumed.
	err = fixture.service.ResetPassword(context.Background(), token, "yet-another-password")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestService_PasswordReset_UnknownEmail surfaces 404 for unregistered emails.
*/
func TestService_PasswordReset_UnknownEmail(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.RequestPasswordReset(context.Background(), "nobody@example.com")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

// # Email Verification

/*
TestService_VerifyEmail redeems the staged verification token.
*/
func TestService_VerifyEmail(t *testing.T) {
	fixture := newServiceFixture(t)
	registered := fixture.register(t, "tai@example.com", "password-123")
	assert.False(t, registered.User.IsVerified)

	// Registration staged exactly one verification token.
	require.Len(t, fixture.verifies.values, 1)
	var token string
	for staged := range fixture.verifies.values {
		token = staged
	}

	require.NoError(t, fixture.service.VerifyEmail(context.Background(), token))

	user, err := fixture.service.Me(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.True(t, user.IsVerified)

	// Token is single-use.
	err = fixture.service.VerifyEmail(context.Background(), token)
	assert.Error(t, err)
}

// # OAuth

/*
TestService_CompleteOAuth_IdentityReuse signs in twice with the same provider
identity and expects exactly one account.
*/
func TestService_CompleteOAuth_IdentityReuse(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	first := fixture.oauthSignIn(t)
	second := fixture.oauthSignIn(t)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Len(t, fixture.users.users, 1)
	assert.True(t, first.User.IsVerified)

	user, err := fixture.users.FindByProvider(ctx, auth.ProviderGoogle, "google-uid-1")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, user.ID)
}

/*
TestService_CompleteOAuth_LinksExistingEmail attaches the provider identity to
an existing local account instead of creating a duplicate.
*/
func TestService_CompleteOAuth_LinksExistingEmail(t *testing.T) {
	fixture := newServiceFixture(t)
	registered := fixture.register(t, "oauth@example.com", "password-123")

	result := fixture.oauthSignIn(t)

	assert.Equal(t, registered.User.ID, result.User.ID)
	assert.Equal(t, auth.ProviderGoogle, result.User.Provider)
	assert.Equal(t, "google-uid-1", result.User.ProviderID)
	assert.Len(t, fixture.users.users, 1)
}

/*
TestService_CompleteOAuth_StateChecks rejects unknown, replayed, and
cross-provider states.
*/
func TestService_CompleteOAuth_StateChecks(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	t.Run("unknown_state", func(t *testing.T) {
		_, err := fixture.service.CompleteOAuth(ctx, auth.ProviderGoogle, "forged-state", "code")
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("replayed_state", func(t *testing.T) {
		state := fixture.issueState(t)
		_, err := fixture.service.CompleteOAuth(ctx, auth.ProviderGoogle, state, "code")
		require.NoError(t, err)

		_, err = fixture.service.CompleteOAuth(ctx, auth.ProviderGoogle, state, "code")
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("unknown_provider", func(t *testing.T) {
		_, err := fixture.service.AuthorizationURL(ctx, "gitlab")
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))
	})
}

/*
TestService_CompleteOAuth_NoEmail rejects provider identities that carry no
email address instead of inserting an account with an empty one.
*/
func TestService_CompleteOAuth_NoEmail(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.provider.identity.Email = ""

	state := fixture.issueState(t)
	_, err := fixture.service.CompleteOAuth(context.Background(), auth.ProviderGoogle, state, "provider-code")

	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	assert.Empty(t, fixture.users.users)
}

// oauthSignIn runs a full state-issue + callback round trip.
func (fixture *serviceFixture) oauthSignIn(t *testing.T) *auth.AuthResponse {
	t.Helper()
	state := fixture.issueState(t)
	result, err := fixture.service.CompleteOAuth(context.Background(), auth.ProviderGoogle, state, "provider-code")
	require.NoError(t, err)
	return result
}

// issueState begins an OAuth flow and extracts the staged state value.
func (fixture *serviceFixture) issueState(t *testing.T) string {
	t.Helper()
	_, err := fixture.service.AuthorizationURL(context.Background(), auth.ProviderGoogle)
	require.NoError(t, err)
	for state := range fixture.states.states {
		return state
	}
	t.Fatal("no state was staged")
	return ""
}

// # Deactivation

/*
TestService_DeactivatedAccount checks that a soft-deleted account can neither
log in nor refresh its session.
*/
func TestService_DeactivatedAccount(t *testing.T) {
	fixture := newServiceFixture(t)
	registered := fixture.register(t, "tai@example.com", "password-123")
	ctx := context.Background()

	require.NoError(t, fixture.users.SetActive(ctx, registered.User.ID, false))

	user, err := fixture.users.FindByID(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	_, err = fixture.service.Login(ctx, auth.LoginInput{
		Identifier: "tai@example.com", Password: "password-123",
	})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)

	_, err = fixture.service.RefreshSession(ctx, registered.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}
