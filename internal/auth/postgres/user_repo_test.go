// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratakit/strata/internal/auth"
	"github.com/stratakit/strata/pkg/errutil"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	user := &auth.User{
		ID:        ulid.Make(),
		Email:     "a@example.com",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		check     func(t *testing.T, err error)
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Email, user.EmailVerifiedAt, user.CreatedAt, user.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			check: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "duplicate email maps to ErrEmailTaken",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Email, user.EmailVerifiedAt, user.CreatedAt, user.UpdatedAt).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.ErrorIs(t, err, auth.ErrEmailTaken)
				errutil.AssertErrorCode(t, err, "USER_EMAIL_TAKEN")
			},
		},
		{
			name: "other database error is not ErrEmailTaken",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Email, user.EmailVerifiedAt, user.CreatedAt, user.UpdatedAt).
					WillReturnError(errors.New("connection refused"))
			},
			check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.NotErrorIs(t, err, auth.ErrEmailTaken)
				assert.Contains(t, err.Error(), "connection refused")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			tt.setupMock(mock)

			repo := NewUserRepository(mock)
			tt.check(t, repo.Create(ctx, user))

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		rows := pgxmock.NewRows([]string{"id", "email", "email_verified_at", "created_at", "updated_at"}).
			AddRow(userID.String(), "a@example.com", (*time.Time)(nil), now, now)
		mock.ExpectQuery(`SELECT id, email, email_verified_at, created_at, updated_at\s+FROM users`).
			WithArgs(userID.String()).
			WillReturnRows(rows)

		user, err := NewUserRepository(mock).GetByID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		assert.Equal(t, "a@example.com", user.Email)
		assert.Nil(t, user.EmailVerifiedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT id, email, email_verified_at, created_at, updated_at\s+FROM users`).
			WithArgs(userID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "email", "email_verified_at", "created_at", "updated_at"}))

		_, err := NewUserRepository(mock).GetByID(ctx, userID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed stored id fails", func(t *testing.T) {
		mock := newMockPool(t)
		rows := pgxmock.NewRows([]string{"id", "email", "email_verified_at", "created_at", "updated_at"}).
			AddRow("not-a-ulid", "a@example.com", (*time.Time)(nil), now, now)
		mock.ExpectQuery(`SELECT id, email, email_verified_at, created_at, updated_at\s+FROM users`).
			WithArgs(userID.String()).
			WillReturnRows(rows)

		_, err := NewUserRepository(mock).GetByID(ctx, userID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()
	now := time.Now()

	t.Run("matches case-insensitively via lower()", func(t *testing.T) {
		mock := newMockPool(t)
		rows := pgxmock.NewRows([]string{"id", "email", "email_verified_at", "created_at", "updated_at"}).
			AddRow(userID.String(), "A@Example.com", &now, now, now)
		mock.ExpectQuery(`WHERE lower\(email\) = lower\(\$1\)`).
			WithArgs("a@example.com").
			WillReturnRows(rows)

		user, err := NewUserRepository(mock).GetByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		require.NotNil(t, user.EmailVerifiedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`WHERE lower\(email\) = lower\(\$1\)`).
			WithArgs("nobody@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"id", "email", "email_verified_at", "created_at", "updated_at"}))

		_, err := NewUserRepository(mock).GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_SetEmailVerified(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()
	verifiedAt := time.Now()

	t.Run("successful update", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET email_verified_at`).
			WithArgs(userID.String(), verifiedAt, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, NewUserRepository(mock).SetEmailVerified(ctx, userID, verifiedAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET email_verified_at`).
			WithArgs(userID.String(), verifiedAt, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := NewUserRepository(mock).SetEmailVerified(ctx, userID, verifiedAt)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Delete(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()

	t.Run("successful delete", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		assert.NoError(t, NewUserRepository(mock).Delete(ctx, userID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := NewUserRepository(mock).Delete(ctx, userID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
