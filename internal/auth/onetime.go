// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// One-time token configuration.
const (
	// OneTimeTokenLength is the hex length of verify-email and reset tokens.
	OneTimeTokenLength = 32

	// VerifyEmailTokenTTL bounds how long an emailed verification link works.
	VerifyEmailTokenTTL = 24 * time.Hour

	// ResetTokenTTL bounds how long a password reset link works.
	ResetTokenTTL = time.Hour
)

// OneTimeToken is a single-use token bound to a user. Each user has at most
// one active token per flow; issuing a new one overwrites the old.
// Consumption is enforced by deletion, not a used-flag.
type OneTimeToken struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOneTimeToken creates a validated OneTimeToken.
func NewOneTimeToken(userID ulid.ULID, token string, expiresAt time.Time) (*OneTimeToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if token == "" {
		return nil, oops.Code("TOKEN_INVALID").Errorf("token cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	now := time.Now()
	return &OneTimeToken{
		ID:        ulid.Make(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsExpiredAt returns true if the token is expired at the given time.
func (t *OneTimeToken) IsExpiredAt(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}

// OneTimeTokenRepository manages one-time token persistence. The postgres
// package provides one instance per flow (verify-email, reset) backed by
// separate tables, both unique on user id.
type OneTimeTokenRepository interface {
	// Upsert stores the token, replacing any active token for the same
	// user rather than duplicating it.
	Upsert(ctx context.Context, token *OneTimeToken) error

	// GetByToken retrieves a token by its token string.
	GetByToken(ctx context.Context, token string) (*OneTimeToken, error)

	// DeleteByUser removes all tokens for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes expired tokens and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
