// Copyright (c) 2026 Identra. All rights reserved.

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra/identra/internal/platform/apperr"
	"github.com/identra/identra/internal/users/auth"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

/*
TestRedisResetTokenRepository covers the set/get/delete lifecycle and TTL
expiry of reset tokens.
*/
func TestRedisResetTokenRepository(t *testing.T) {
	server, client := newTestRedis(t)
	repo := auth.NewResetTokenRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "reset-token", "user-1", time.Hour))

	userID, err := repo.Get(ctx, "reset-token")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	t.Run("unknown_token", func(t *testing.T) {
		_, err := repo.Get(ctx, "never-issued")
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("expired_token", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "short-lived", "user-2", time.Minute))
		server.FastForward(2 * time.Minute)

		_, err := repo.Get(ctx, "short-lived")
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("deleted_token", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "reset-token"))
		_, err := repo.Get(ctx, "reset-token")
		assert.Error(t, err)
	})
}

/*
TestRedisResetTokenRepository_HashedKeys ensures the raw token never appears
as a Redis key.
*/
func TestRedisResetTokenRepository_HashedKeys(t *testing.T) {
	server, client := newTestRedis(t)
	repo := auth.NewResetTokenRepository(client)

	require.NoError(t, repo.Set(context.Background(), "raw-secret-token", "user-1", time.Hour))

	for _, key := range server.Keys() {
		assert.NotContains(t, key, "raw-secret-token")
	}
}

/*
TestRedisVerificationTokenRepository covers the verification token lifecycle.
*/
func TestRedisVerificationTokenRepository(t *testing.T) {
	_, client := newTestRedis(t)
	repo := auth.NewVerificationTokenRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "verify-token", "user-9", 24*time.Hour))

	userID, err := repo.Get(ctx, "verify-token")
	require.NoError(t, err)
	assert.Equal(t, "user-9", userID)

	require.NoError(t, repo.Delete(ctx, "verify-token"))
	_, err = repo.Get(ctx, "verify-token")
	assert.Error(t, err)
}

/*
TestRedisStateRepository checks that OAuth states are strictly single-use and
expire with their TTL.
*/
func TestRedisStateRepository(t *testing.T) {
	server, client := newTestRedis(t)
	repo := auth.NewStateRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "state-1", auth.ProviderGoogle, 10*time.Minute))

	provider, err := repo.Consume(ctx, "state-1")
	require.NoError(t, err)
	assert.Equal(t, auth.ProviderGoogle, provider)

	t.Run("replay_rejected", func(t *testing.T) {
		_, err := repo.Consume(ctx, "state-1")
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("expired_state", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "state-2", auth.ProviderGithub, time.Minute))
		server.FastForward(2 * time.Minute)

		_, err := repo.Consume(ctx, "state-2")
		assert.Error(t, err)
	})
}
