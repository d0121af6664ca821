// Copyright (c) 2026 Identra. All rights reserved.

package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Values follow the RFC 9106 low-memory profile,
// balancing security and CPU utilization during registration spikes.
const (
	argonMemoryKB    uint32 = 64 * 1024
	argonTime        uint32 = 1
	argonParallelism uint8  = 4
	argonSaltLength  uint32 = 16
	argonKeyLength   uint32 = 32

	algorithmID = "argon2id"
)

// HashPassword hashes a plain-text password using argon2id and encodes the
// result in PHC string format ($argon2id$v=...$m=...,t=...,p=...$salt$hash).
func HashPassword(plainTextPassword string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("sec: failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(
		[]byte(plainTextPassword),
		salt,
		argonTime,
		argonMemoryKB,
		argonParallelism,
		argonKeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		argonMemoryKB,
		argonTime,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version
// using a constant-time comparison.
//
// Malformed hashes are treated as a mismatch rather than an error so that
// callers can always map a false result to a generic Unauthorized response.
func CheckPasswordHash(plainTextPassword, encodedHash string) bool {
	params, salt, hash, err := decodePHC(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(plainTextPassword),
		salt,
		params.time,
		params.memory,
		params.parallelism,
		uint32(len(hash)),
	)

	return subtle.ConstantTimeCompare(computed, hash) == 1
}

// argonParams holds the cost parameters recovered from a PHC string.
type argonParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

// decodePHC parses a PHC-formatted argon2id hash string.
func decodePHC(encodedHash string) (*argonParams, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, nil, nil, errors.New("sec: invalid PHC format")
	}

	if parts[1] != algorithmID {
		return nil, nil, nil, errors.New("sec: unsupported algorithm")
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return nil, nil, nil, errors.New("sec: missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, nil, nil, errors.New("sec: unsupported argon2 version")
	}

	params := &argonParams{}
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, nil, nil, errors.New("sec: invalid parameter entry")
		}
		value, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return nil, nil, nil, errors.New("sec: invalid parameter value")
		}
		switch kv[0] {
		case "m":
			params.memory = uint32(value)
		case "t":
			params.time = uint32(value)
		case "p":
			params.parallelism = uint8(value)
		default:
			return nil, nil, nil, errors.New("sec: unsupported parameter")
		}
	}
	if params.memory == 0 || params.time == 0 || params.parallelism == 0 {
		return nil, nil, nil, errors.New("sec: missing parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, errors.New("sec: invalid salt encoding")
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return nil, nil, nil, errors.New("sec: invalid hash encoding")
	}

	return params, salt, hash, nil
}
