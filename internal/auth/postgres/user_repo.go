// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stratakit/strata/internal/auth"
)

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a new UserRepository over a pool or tx.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user. A unique-constraint violation on the email
// column is translated to auth.ErrEmailTaken so the storage layer, not the
// pre-check, arbitrates concurrent duplicate sign-ups.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, email_verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		user.ID.String(),
		user.Email,
		user.EmailVerifiedAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_EMAIL_TAKEN").
				With("email", user.Email).
				Wrap(auth.ErrEmailTaken)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, email_verified_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, email_verified_at, created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// SetEmailVerified records the email verification timestamp.
func (r *UserRepository) SetEmailVerified(ctx context.Context, id ulid.ULID, verifiedAt time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET email_verified_at = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), verifiedAt, time.Now())
	if err != nil {
		return oops.Code("USER_SET_VERIFIED_FAILED").
			With("operation", "update email_verified_at").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a user. Accounts, profiles, sessions, and one-time tokens
// cascade at the schema level.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM users WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User. Callers handle pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr      string
		email      string
		verifiedAt *time.Time
		createdAt  time.Time
		updatedAt  time.Time
	)

	if err := row.Scan(&idStr, &email, &verifiedAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.User{
		ID:              id,
		Email:           email,
		EmailVerifiedAt: verifiedAt,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
