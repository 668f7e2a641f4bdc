// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultRefreshInterval is the renewal window: a session validated within
// this interval of its expiry has its lifetime extended.
const DefaultRefreshInterval = 15 * 24 * time.Hour

// RenewalPolicy fixes the session lifetime pair. MaxDuration is always
// 2 x RefreshInterval so renewal happens in the last half of a session's
// lifetime; the two are never configured independently.
type RenewalPolicy struct {
	RefreshInterval time.Duration
	MaxDuration     time.Duration
}

// NewRenewalPolicy derives the lifetime pair from the refresh interval.
func NewRenewalPolicy(refreshInterval time.Duration) (RenewalPolicy, error) {
	if refreshInterval <= 0 {
		return RenewalPolicy{}, oops.Code("SESSION_INVALID_POLICY").
			Errorf("refresh interval must be positive, got %s", refreshInterval)
	}
	return RenewalPolicy{
		RefreshInterval: refreshInterval,
		MaxDuration:     2 * refreshInterval,
	}, nil
}

// DefaultRenewalPolicy returns the 15-day/30-day production policy.
func DefaultRenewalPolicy() RenewalPolicy {
	return RenewalPolicy{
		RefreshInterval: DefaultRefreshInterval,
		MaxDuration:     2 * DefaultRefreshInterval,
	}
}

// Session is a single active login instance. ID is the hex SHA-256 hash of
// the bearer token; the raw token is never stored.
type Session struct {
	ID        string
	UserID    ulid.ULID
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates a validated Session from a raw token.
func NewSession(token string, userID ulid.ULID, expiresAt time.Time) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_INVALID_TOKEN").Errorf("session token cannot be empty")
	}
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	now := time.Now()
	return &Session{
		ID:        HashSessionToken(token),
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsExpiredAt returns true if the session is expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// RenewalDueAt returns true if the session is inside the renewal window at
// the given time, per the policy.
func (s *Session) RenewalDueAt(t time.Time, policy RenewalPolicy) bool {
	return !t.Before(s.ExpiresAt.Add(-policy.RefreshInterval))
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByID retrieves a session by its ID (the token hash).
	GetByID(ctx context.Context, id string) (*Session, error)

	// UpdateExpiry persists a renewed expiry timestamp.
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// DeleteByUser removes all sessions for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes all expired sessions and returns the count of
	// deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
