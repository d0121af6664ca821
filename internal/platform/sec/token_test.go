// Copyright (c) 2026 Identra. All rights reserved.

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra/identra/internal/platform/sec"
)

/*
TestGenerateSecureToken checks uniqueness and URL-safety of random tokens.
*/
func TestGenerateSecureToken(t *testing.T) {
	first, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotContains(t, first, "+")
	assert.NotContains(t, first, "/")
	assert.NotContains(t, first, "=")
}

/*
TestHashToken is deterministic and never echoes the input.
*/
func TestHashToken(t *testing.T) {
	digest := sec.HashToken("my-secret-token")

	assert.Equal(t, digest, sec.HashToken("my-secret-token"))
	assert.NotEqual(t, digest, sec.HashToken("other-token"))
	assert.Len(t, digest, 64) // hex-encoded SHA-256
	assert.NotContains(t, digest, "my-secret-token")
}
