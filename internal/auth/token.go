// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"

	"github.com/samber/oops"
)

// SessionTokenBytes is the entropy of a session token. 20 bytes encode to
// 32 base32 characters.
const SessionTokenBytes = 20

// sessionTokenEncoding is lowercase unpadded RFC 4648 base32, so tokens are
// URL-safe and cookie-safe without escaping.
var sessionTokenEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// GenerateSessionToken creates an opaque bearer token for a session.
// The raw token goes to the client; only its hash is ever persisted.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}
	return sessionTokenEncoding.EncodeToString(buf), nil
}

// HashSessionToken computes the hex SHA-256 hash of a session token.
// The hash is the session's storage id.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks if the plaintext token matches the stored hash
// in constant time.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// GenerateRandomToken creates a hex token of exactly length characters for
// one-time flows (email verification, password reset).
func GenerateRandomToken(length int) (string, error) {
	if length <= 0 {
		return "", oops.Code("TOKEN_INVALID_LENGTH").Errorf("token length must be positive, got %d", length)
	}

	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	return hex.EncodeToString(buf)[:length], nil
}
