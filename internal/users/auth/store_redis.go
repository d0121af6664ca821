// Copyright (c) 2026 Identra. All rights reserved.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/identra/identra/internal/platform/apperr"
	"github.com/identra/identra/internal/platform/constants"
	"github.com/identra/identra/internal/platform/sec"
)

// # Volatile Token Storage
//
// Password reset, email verification, and OAuth state values are single-use
// secrets with a bounded lifetime. They live in Redis under a TTL instead of
// on the user document so expiry is enforced by the store itself and a stolen
// database snapshot exposes only hashes.

// RedisResetTokenRepository implements [ResetTokenRepository] on Redis.
type RedisResetTokenRepository struct {
	tokens *tokenStore
}

// NewResetTokenRepository creates a Redis-backed [ResetTokenRepository].
func NewResetTokenRepository(client *redis.Client) *RedisResetTokenRepository {
	return &RedisResetTokenRepository{
		tokens: &tokenStore{client: client, prefix: constants.RedisPrefixResetToken},
	}
}

// Set stores a reset token associated with a userID for a limited duration.
func (repository *RedisResetTokenRepository) Set(ctx context.Context, token, userID string, ttl time.Duration) error {
	return repository.tokens.set(ctx, token, userID, ttl)
}

// Get retrieves the userID associated with a given reset token.
func (repository *RedisResetTokenRepository) Get(ctx context.Context, token string) (string, error) {
	return repository.tokens.get(ctx, token)
}

// Delete removes a reset token after successful use.
func (repository *RedisResetTokenRepository) Delete(ctx context.Context, token string) error {
	return repository.tokens.delete(ctx, token)
}

// RedisVerificationTokenRepository implements [VerificationTokenRepository] on Redis.
type RedisVerificationTokenRepository struct {
	tokens *tokenStore
}

// NewVerificationTokenRepository creates a Redis-backed [VerificationTokenRepository].
func NewVerificationTokenRepository(client *redis.Client) *RedisVerificationTokenRepository {
	return &RedisVerificationTokenRepository{
		tokens: &tokenStore{client: client, prefix: constants.RedisPrefixVerifyToken},
	}
}

// Set stores a verification token associated with a userID for a limited duration.
func (repository *RedisVerificationTokenRepository) Set(ctx context.Context, token, userID string, ttl time.Duration) error {
	return repository.tokens.set(ctx, token, userID, ttl)
}

// Get retrieves the userID associated with a given verification token.
func (repository *RedisVerificationTokenRepository) Get(ctx context.Context, token string) (string, error) {
	return repository.tokens.get(ctx, token)
}

// Delete removes a verification token after successful use.
func (repository *RedisVerificationTokenRepository) Delete(ctx context.Context, token string) error {
	return repository.tokens.delete(ctx, token)
}

// tokenStore is the shared key/value plumbing behind both token repositories.
//
// Only the SHA-256 digest of a token is used as the Redis key, so the raw
// secret never leaves the email/URL it was delivered through.
type tokenStore struct {
	client *redis.Client
	prefix string
}

func (store *tokenStore) key(token string) string {
	return store.prefix + sec.HashToken(token)
}

func (store *tokenStore) set(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := store.client.Set(ctx, store.key(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_token_set_failed: %w", err)
	}
	return nil
}

func (store *tokenStore) get(ctx context.Context, token string) (string, error) {
	userID, err := store.client.Get(ctx, store.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.Unauthorized("Token is invalid or has expired")
	}
	if err != nil {
		return "", fmt.Errorf("redis_token_get_failed: %w", err)
	}
	return userID, nil
}

func (store *tokenStore) delete(ctx context.Context, token string) error {
	if err := store.client.Del(ctx, store.key(token)).Err(); err != nil {
		return fmt.Errorf("redis_token_delete_failed: %w", err)
	}
	return nil
}

// # OAuth State Storage

// RedisStateRepository implements [StateRepository] on Redis.
type RedisStateRepository struct {
	client *redis.Client
}

// NewStateRepository creates a Redis-backed [StateRepository].
func NewStateRepository(client *redis.Client) *RedisStateRepository {
	return &RedisStateRepository{client: client}
}

// Set stores a state value for the given provider with a limited duration.
func (repository *RedisStateRepository) Set(ctx context.Context, state, provider string, ttl time.Duration) error {
	key := constants.RedisPrefixOAuthState + sec.HashToken(state)
	if err := repository.client.Set(ctx, key, provider, ttl).Err(); err != nil {
		return fmt.Errorf("redis_state_set_failed: %w", err)
	}
	return nil
}

// Consume validates and deletes a state value in one step, returning the
// provider the state was issued for. GETDEL makes the check-and-invalidate
// atomic, so a replayed callback cannot race a legitimate one.
func (repository *RedisStateRepository) Consume(ctx context.Context, state string) (string, error) {
	key := constants.RedisPrefixOAuthState + sec.HashToken(state)
	provider, err := repository.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.Unauthorized("OAuth state is invalid or has expired")
	}
	if err != nil {
		return "", fmt.Errorf("redis_state_consume_failed: %w", err)
	}
	return provider, nil
}
