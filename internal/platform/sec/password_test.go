// Copyright (c) 2026 Identra. All rights reserved.

package sec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra/identra/internal/platform/sec"
)

/*
TestHashPassword_Format checks the PHC string layout of generated hashes.
*/
func TestHashPassword_Format(t *testing.T) {
	hash, err := sec.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.Len(t, strings.Split(hash, "$"), 6)
}

/*
TestCheckPasswordHash verifies round-trips and rejections.
*/
func TestCheckPasswordHash(t *testing.T) {
	const password = "sup3r-secret-pw"

	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"correct_password", password, hash, true},
		{"wrong_password", "not-the-password", hash, false},
		{"empty_password", "", hash, false},
		{"malformed_hash", password, "$argon2id$garbage", false},
		{"empty_hash", password, "", false},
		{"bcrypt_style_hash", password, "$2a$10$abcdefghijklmnopqrstuv", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sec.CheckPasswordHash(tt.password, tt.hash))
		})
	}
}

/*
TestHashPassword_UniqueSalt ensures two hashes of the same password differ.
*/
func TestHashPassword_UniqueSalt(t *testing.T) {
	first, err := sec.HashPassword("same-password")
	require.NoError(t, err)
	second, err := sec.HashPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, sec.CheckPasswordHash("same-password", first))
	assert.True(t, sec.CheckPasswordHash("same-password", second))
}
