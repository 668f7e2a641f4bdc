// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stratakit/strata/internal/auth"
	"github.com/stratakit/strata/internal/auth/mocks"
	"github.com/stratakit/strata/pkg/errutil"
)

func testPolicy(t *testing.T) auth.RenewalPolicy {
	t.Helper()
	policy, err := auth.NewRenewalPolicy(15 * 24 * time.Hour)
	require.NoError(t, err)
	return policy
}

func TestNewSessionManager(t *testing.T) {
	policy := testPolicy(t)

	t.Run("rejects nil repositories", func(t *testing.T) {
		_, err := auth.NewSessionManager(nil, mocks.NewMockUserRepository(t), policy)
		assert.Error(t, err)

		_, err = auth.NewSessionManager(mocks.NewMockSessionRepository(t), nil, policy)
		assert.Error(t, err)
	})

	t.Run("rejects a policy with an inconsistent lifetime pair", func(t *testing.T) {
		broken := auth.RenewalPolicy{
			RefreshInterval: 10 * time.Hour,
			MaxDuration:     25 * time.Hour,
		}
		_, err := auth.NewSessionManager(mocks.NewMockSessionRepository(t), mocks.NewMockUserRepository(t), broken)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_POLICY")
	})
}

func TestSessionManager_CreateSession(t *testing.T) {
	ctx := context.Background()
	policy := testPolicy(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stores a session with a full lifetime", func(t *testing.T) {
		sessionRepo := mocks.NewMockSessionRepository(t)
		userRepo := mocks.NewMockUserRepository(t)
		mgr, err := auth.NewSessionManagerWithClock(sessionRepo, userRepo, policy, func() time.Time { return now })
		require.NoError(t, err)

		userID := ulid.Make()
		token, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		sessionRepo.On("Create", ctx, mock.MatchedBy(func(s *auth.Session) bool {
			return s.ID == auth.HashSessionToken(token) &&
				s.UserID == userID &&
				s.ExpiresAt.Equal(now.Add(policy.MaxDuration))
		})).Return(nil)

		session, err := mgr.CreateSession(ctx, token, userID)
		require.NoError(t, err)
		assert.Equal(t, auth.HashSessionToken(token), session.ID)
		assert.Equal(t, now.Add(policy.MaxDuration), session.ExpiresAt)
	})

	t.Run("propagates storage failures", func(t *testing.T) {
		sessionRepo := mocks.NewMockSessionRepository(t)
		userRepo := mocks.NewMockUserRepository(t)
		mgr, err := auth.NewSessionManagerWithClock(sessionRepo, userRepo, policy, func() time.Time { return now })
		require.NoError(t, err)

		sessionRepo.On("Create", ctx, mock.AnythingOfType("*auth.Session")).Return(errors.New("boom"))

		_, err = mgr.CreateSession(ctx, "sometoken", ulid.Make())
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_CREATE_FAILED")
	})
}

func TestSessionManager_ValidateSessionToken(t *testing.T) {
	ctx := context.Background()
	policy := testPolicy(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	newManager := func(t *testing.T, at time.Time) (*auth.SessionManager, *mocks.MockSessionRepository, *mocks.MockUserRepository) {
		sessionRepo := mocks.NewMockSessionRepository(t)
		userRepo := mocks.NewMockUserRepository(t)
		mgr, err := auth.NewSessionManagerWithClock(sessionRepo, userRepo, policy, func() time.Time { return at })
		require.NoError(t, err)
		return mgr, sessionRepo, userRepo
	}

	t.Run("fresh session validates without renewal", func(t *testing.T) {
		mgr, sessionRepo, userRepo := newManager(t, now)

		userID := ulid.Make()
		token := "freshtoken"
		stored := &auth.Session{
			ID:        auth.HashSessionToken(token),
			UserID:    userID,
			ExpiresAt: now.Add(policy.MaxDuration),
		}
		user := &auth.User{ID: userID, Email: "a@example.com"}

		sessionRepo.On("GetByID", ctx, stored.ID).Return(stored, nil)
		userRepo.On("GetByID", ctx, userID).Return(user, nil)
		// No UpdateExpiry expectation: the expiry must not change.

		gotSession, gotUser, err := mgr.ValidateSessionToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, stored.ExpiresAt, gotSession.ExpiresAt)
		assert.Equal(t, user, gotUser)
	})

	t.Run("session in the renewal window gets a persisted extension", func(t *testing.T) {
		mgr, sessionRepo, userRepo := newManager(t, now)

		userID := ulid.Make()
		token := "renewtoken"
		stored := &auth.Session{
			ID:        auth.HashSessionToken(token),
			UserID:    userID,
			ExpiresAt: now.Add(policy.RefreshInterval), // exactly at the boundary
		}

		sessionRepo.On("GetByID", ctx, stored.ID).Return(stored, nil)
		userRepo.On("GetByID", ctx, userID).Return(&auth.User{ID: userID}, nil)
		sessionRepo.On("UpdateExpiry", ctx, stored.ID, now.Add(policy.MaxDuration)).Return(nil)

		gotSession, _, err := mgr.ValidateSessionToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, now.Add(policy.MaxDuration), gotSession.ExpiresAt)
	})

	t.Run("expired session is deleted and reported as no session", func(t *testing.T) {
		mgr, sessionRepo, _ := newManager(t, now)

		token := "expiredtoken"
		stored := &auth.Session{
			ID:        auth.HashSessionToken(token),
			UserID:    ulid.Make(),
			ExpiresAt: now.Add(-time.Minute),
		}

		sessionRepo.On("GetByID", ctx, stored.ID).Return(stored, nil)
		sessionRepo.On("Delete", ctx, stored.ID).Return(nil)

		_, _, err := mgr.ValidateSessionToken(ctx, token)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNoSession)
		errutil.AssertErrorCode(t, err, "SESSION_EXPIRED")
	})

	t.Run("orphaned session is deleted and reported as no session", func(t *testing.T) {
		mgr, sessionRepo, userRepo := newManager(t, now)

		userID := ulid.Make()
		token := "orphantoken"
		stored := &auth.Session{
			ID:        auth.HashSessionToken(token),
			UserID:    userID,
			ExpiresAt: now.Add(policy.MaxDuration),
		}

		sessionRepo.On("GetByID", ctx, stored.ID).Return(stored, nil)
		userRepo.On("GetByID", ctx, userID).Return(nil, auth.ErrNotFound)
		sessionRepo.On("Delete", ctx, stored.ID).Return(nil)

		_, _, err := mgr.ValidateSessionToken(ctx, token)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNoSession)
		errutil.AssertErrorCode(t, err, "SESSION_ORPHANED")
	})

	t.Run("unknown token is no session", func(t *testing.T) {
		mgr, sessionRepo, _ := newManager(t, now)

		sessionRepo.On("GetByID", ctx, auth.HashSessionToken("nosuch")).Return(nil, auth.ErrNotFound)

		_, _, err := mgr.ValidateSessionToken(ctx, "nosuch")
		assert.ErrorIs(t, err, auth.ErrNoSession)
	})

	t.Run("empty token is no session without a lookup", func(t *testing.T) {
		mgr, _, _ := newManager(t, now)

		_, _, err := mgr.ValidateSessionToken(ctx, "")
		assert.ErrorIs(t, err, auth.ErrNoSession)
	})
}

func TestSessionManager_InvalidateSession(t *testing.T) {
	ctx := context.Background()
	policy := testPolicy(t)

	t.Run("deletes the session", func(t *testing.T) {
		sessionRepo := mocks.NewMockSessionRepository(t)
		mgr, err := auth.NewSessionManager(sessionRepo, mocks.NewMockUserRepository(t), policy)
		require.NoError(t, err)

		sessionRepo.On("Delete", ctx, "someid").Return(nil)
		assert.NoError(t, mgr.InvalidateSession(ctx, "someid"))
	})

	t.Run("tolerates a session that is already gone", func(t *testing.T) {
		sessionRepo := mocks.NewMockSessionRepository(t)
		mgr, err := auth.NewSessionManager(sessionRepo, mocks.NewMockUserRepository(t), policy)
		require.NoError(t, err)

		sessionRepo.On("Delete", ctx, "gone").Return(auth.ErrNotFound)
		assert.NoError(t, mgr.InvalidateSession(ctx, "gone"))
	})
}

func TestSessionManager_InvalidateUserSessions(t *testing.T) {
	ctx := context.Background()
	policy := testPolicy(t)

	sessionRepo := mocks.NewMockSessionRepository(t)
	mgr, err := auth.NewSessionManager(sessionRepo, mocks.NewMockUserRepository(t), policy)
	require.NoError(t, err)

	userID := ulid.Make()
	sessionRepo.On("DeleteByUser", ctx, userID).Return(nil)

	assert.NoError(t, mgr.InvalidateUserSessions(ctx, userID))
}
