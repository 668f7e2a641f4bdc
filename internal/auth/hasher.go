// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. The iteration count is the work factor; changing it
// invalidates every stored hash, so it is a constant rather than config.
const (
	pbkdf2Iterations = 10000
	pbkdf2KeyLen     = 64 // output length in bytes, hex-encoded to 128 chars
	saltBytes        = 128
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher derives verifiable hashes from plaintext passwords.
type PasswordHasher interface {
	// Hash derives a hex-encoded hash from the password and salt.
	// Deterministic given the same inputs.
	Hash(password, salt string) (string, error)

	// Verify checks the password against a stored hash and salt.
	// Returns (true, nil) on match, (false, nil) on mismatch.
	Verify(password, salt, hash string) (bool, error)

	// GenerateSalt produces a fresh high-entropy salt, base64-encoded.
	// Salts are never reused across accounts or password changes.
	GenerateSalt() (string, error)
}

// PBKDF2Hasher implements PasswordHasher using PBKDF2-SHA512.
type PBKDF2Hasher struct{}

// NewPBKDF2Hasher creates a new PBKDF2Hasher.
func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{}
}

// Hash derives a hex-encoded PBKDF2-SHA512 key from the password and salt.
func (h *PBKDF2Hasher) Hash(password, salt string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if salt == "" {
		return "", oops.Code("AUTH_EMPTY_SALT").Errorf("salt cannot be empty")
	}

	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha512.New)
	return hex.EncodeToString(key), nil
}

// Verify recomputes the hash for the candidate password and compares it to
// the stored hash in constant time.
func (h *PBKDF2Hasher) Verify(password, salt, storedHash string) (bool, error) {
	if storedHash == "" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("stored hash cannot be empty")
	}

	computed, err := h.Hash(password, salt)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1, nil
}

// GenerateSalt produces saltBytes of secure random data, base64-encoded.
func (h *PBKDF2Hasher) GenerateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Compile-time interface check.
var _ PasswordHasher = (*PBKDF2Hasher)(nil)
