// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratakit/strata/internal/auth"
)

func TestSessionRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	session := &auth.Session{
		ID:        auth.HashSessionToken("sometoken"),
		UserID:    ulid.Make(),
		ExpiresAt: now.Add(30 * 24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("successful insert", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(session.ID, session.UserID.String(), session.ExpiresAt, session.CreatedAt, session.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, NewSessionRepository(mock).Create(ctx, session))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(session.ID, session.UserID.String(), session.ExpiresAt, session.CreatedAt, session.UpdatedAt).
			WillReturnError(errors.New("connection lost"))

		err := NewSessionRepository(mock).Create(ctx, session)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection lost")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()
	sessionID := auth.HashSessionToken("sometoken")
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		rows := pgxmock.NewRows([]string{"id", "user_id", "expires_at", "created_at", "updated_at"}).
			AddRow(sessionID, userID.String(), now.Add(time.Hour), now, now)
		mock.ExpectQuery(`SELECT id, user_id, expires_at, created_at, updated_at\s+FROM sessions`).
			WithArgs(sessionID).
			WillReturnRows(rows)

		session, err := NewSessionRepository(mock).GetByID(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, sessionID, session.ID)
		assert.Equal(t, userID, session.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT id, user_id, expires_at, created_at, updated_at\s+FROM sessions`).
			WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "expires_at", "created_at", "updated_at"}))

		_, err := NewSessionRepository(mock).GetByID(ctx, sessionID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed stored user id fails", func(t *testing.T) {
		mock := newMockPool(t)
		rows := pgxmock.NewRows([]string{"id", "user_id", "expires_at", "created_at", "updated_at"}).
			AddRow(sessionID, "not-a-ulid", now.Add(time.Hour), now, now)
		mock.ExpectQuery(`SELECT id, user_id, expires_at, created_at, updated_at\s+FROM sessions`).
			WithArgs(sessionID).
			WillReturnRows(rows)

		_, err := NewSessionRepository(mock).GetByID(ctx, sessionID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepository_UpdateExpiry(t *testing.T) {
	ctx := context.Background()
	sessionID := auth.HashSessionToken("sometoken")
	expiresAt := time.Now().Add(30 * 24 * time.Hour)

	t.Run("successful update", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE sessions SET expires_at`).
			WithArgs(sessionID, expiresAt, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, NewSessionRepository(mock).UpdateExpiry(ctx, sessionID, expiresAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown session maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE sessions SET expires_at`).
			WithArgs(sessionID, expiresAt, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := NewSessionRepository(mock).UpdateExpiry(ctx, sessionID, expiresAt)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepository_Delete(t *testing.T) {
	ctx := context.Background()
	sessionID := auth.HashSessionToken("sometoken")

	t.Run("successful delete", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE id = \$1`).
			WithArgs(sessionID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		assert.NoError(t, NewSessionRepository(mock).Delete(ctx, sessionID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown session maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE id = \$1`).
			WithArgs(sessionID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := NewSessionRepository(mock).Delete(ctx, sessionID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepository_DeleteByUser(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()

	t.Run("deleting zero sessions is not an error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.NoError(t, NewSessionRepository(mock).DeleteByUser(ctx, userID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).
			WithArgs(userID.String()).
			WillReturnError(errors.New("timeout"))

		err := NewSessionRepository(mock).DeleteByUser(ctx, userID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the number of reaped sessions", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at < \$1`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 7))

		count, err := NewSessionRepository(mock).DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(7), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at < \$1`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(errors.New("disk full"))

		_, err := NewSessionRepository(mock).DeleteExpired(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
