// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/oklog/ulid/v2"
)

// SessionManager owns the session lifecycle. It is the sole mutator of
// session records.
type SessionManager struct {
	sessions SessionRepository
	users    UserRepository
	policy   RenewalPolicy

	// now is a hook for deterministic time in tests.
	now func() time.Time
}

// NewSessionManager creates a SessionManager with the given policy.
func NewSessionManager(sessions SessionRepository, users UserRepository, policy RenewalPolicy) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if policy.RefreshInterval <= 0 || policy.MaxDuration != 2*policy.RefreshInterval {
		return nil, oops.Code("SESSION_INVALID_POLICY").
			Errorf("renewal policy must satisfy max duration = 2 x refresh interval")
	}
	return &SessionManager{
		sessions: sessions,
		users:    users,
		policy:   policy,
		now:      time.Now,
	}, nil
}

// NewSessionManagerWithClock creates a SessionManager with an injected
// clock. Useful for testing renewal and expiry with deterministic time.
func NewSessionManagerWithClock(sessions SessionRepository, users UserRepository, policy RenewalPolicy, now func() time.Time) (*SessionManager, error) {
	m, err := NewSessionManager(sessions, users, policy)
	if err != nil {
		return nil, err
	}
	if now == nil {
		return nil, oops.Errorf("clock is required")
	}
	m.now = now
	return m, nil
}

// CreateSession stores a session for the raw token with a full lifetime.
// The returned record carries the token hash, never the token; the caller
// already holds the raw token.
func (m *SessionManager) CreateSession(ctx context.Context, token string, userID ulid.ULID) (*Session, error) {
	session, err := NewSession(token, userID, m.now().Add(m.policy.MaxDuration))
	if err != nil {
		return nil, err
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return session, nil
}

// ValidateSessionToken resolves a raw token to its session and owning user.
//
// Expired sessions and sessions whose user no longer exists are deleted as
// a side effect and reported as ErrNoSession; there is no background sweep.
// A session validated inside the last half of its lifetime has its expiry
// extended to now + MaxDuration, persisted before returning.
func (m *SessionManager) ValidateSessionToken(ctx context.Context, token string) (*Session, *User, error) {
	if token == "" {
		return nil, nil, oops.Code("SESSION_INVALID").Wrap(ErrNoSession)
	}

	session, err := m.sessions.GetByID(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, oops.Code("SESSION_INVALID").Wrap(ErrNoSession)
		}
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	now := m.now()

	if session.IsExpiredAt(now) {
		if err := m.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, nil, oops.Code("SESSION_REAP_FAILED").
				With("operation", "delete expired session").
				Wrap(err)
		}
		return nil, nil, oops.Code("SESSION_EXPIRED").Wrap(ErrNoSession)
	}

	user, err := m.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Orphaned session: the owning user is gone. Self-heal.
			if delErr := m.sessions.Delete(ctx, session.ID); delErr != nil && !errors.Is(delErr, ErrNotFound) {
				return nil, nil, oops.Code("SESSION_REAP_FAILED").
					With("operation", "delete orphaned session").
					Wrap(delErr)
			}
			return nil, nil, oops.Code("SESSION_ORPHANED").Wrap(ErrNoSession)
		}
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session user").
			Wrap(err)
	}

	if session.RenewalDueAt(now, m.policy) {
		session.ExpiresAt = now.Add(m.policy.MaxDuration)
		session.UpdatedAt = now
		if err := m.sessions.UpdateExpiry(ctx, session.ID, session.ExpiresAt); err != nil {
			return nil, nil, oops.Code("SESSION_RENEW_FAILED").
				With("operation", "persist renewed expiry").
				Wrap(err)
		}
	}

	return session, user, nil
}

// InvalidateSession hard-deletes a session by ID. Deleting a session that
// does not exist is not an error.
func (m *SessionManager) InvalidateSession(ctx context.Context, sessionID string) error {
	if err := m.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// InvalidateUserSessions removes every session owned by the user, e.g.
// after a password reset.
func (m *SessionManager) InvalidateUserSessions(ctx context.Context, userID ulid.ULID) error {
	if err := m.sessions.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("SESSION_DELETE_BY_USER_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}
