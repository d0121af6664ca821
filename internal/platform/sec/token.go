// Copyright (c) 2026 Identra. All rights reserved.

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// # Opaque Tokens

// GenerateSecureToken returns a URL-safe random token of the given byte length.
//
// Used for password-reset tokens, email-verification tokens, and OAuth state
// values. These tokens are bearer secrets: store only their hash, or keep
// them in Redis with a TTL.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token.
//
// Lookups key on the digest so a storage compromise never exposes a usable
// token value.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
