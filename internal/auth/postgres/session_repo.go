// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stratakit/strata/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
// Session ids are token hashes, so the table never holds a usable
// credential.
type SessionRepository struct {
	db Querier
}

// NewSessionRepository creates a new SessionRepository over a pool or tx.
func NewSessionRepository(db Querier) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID,
		session.UserID.String(),
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a session by its ID (the token hash).
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*auth.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, expires_at, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`, id)

	var (
		sessionID string
		userIDStr string
		expiresAt time.Time
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&sessionID, &userIDStr, &expiresAt, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by id").
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// UpdateExpiry persists a renewed expiry timestamp.
func (r *SessionRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE sessions SET expires_at = $2, updated_at = $3
		WHERE id = $1
	`, id, expiresAt, time.Now())
	if err != nil {
		return oops.Code("SESSION_UPDATE_EXPIRY_FAILED").
			With("operation", "update expires_at").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM sessions WHERE id = $1
	`, id)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes all sessions for a user. Deleting none is a valid
// state, not an error.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM sessions WHERE user_id = $1
	`, userID.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_USER_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
