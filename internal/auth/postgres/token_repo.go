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

// One-time token tables. Verify-email and reset tokens share a shape but
// live in separate tables, each unique on user_id.
const (
	tableVerifyEmailTokens = "verify_email_tokens"
	tableResetTokens       = "reset_tokens"
)

// OneTimeTokenRepository implements auth.OneTimeTokenRepository for one of
// the one-time token tables.
type OneTimeTokenRepository struct {
	db    Querier
	table string
}

// NewOneTimeTokenRepository creates a repository over the given table.
func NewOneTimeTokenRepository(db Querier, table string) *OneTimeTokenRepository {
	return &OneTimeTokenRepository{db: db, table: table}
}

// Upsert stores the token. The user_id unique constraint turns a second
// issue during an active period into an overwrite, never a duplicate.
func (r *OneTimeTokenRepository) Upsert(ctx context.Context, token *auth.OneTimeToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO `+r.table+` (id, user_id, token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = EXCLUDED.updated_at
	`,
		token.ID.String(),
		token.UserID.String(),
		token.Token,
		token.ExpiresAt,
		token.CreatedAt,
		token.UpdatedAt,
	)
	if err != nil {
		return oops.Code("TOKEN_UPSERT_FAILED").
			With("operation", "upsert one-time token").
			With("table", r.table).
			With("user_id", token.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByToken retrieves a token by its token string.
func (r *OneTimeTokenRepository) GetByToken(ctx context.Context, tokenStr string) (*auth.OneTimeToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, token, expires_at, created_at, updated_at
		FROM `+r.table+`
		WHERE token = $1
	`, tokenStr)

	var (
		idStr     string
		userIDStr string
		token     string
		expiresAt time.Time
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&idStr, &userIDStr, &token, &expiresAt, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("table", r.table).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get one-time token").
			With("table", r.table).
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID_USER_ID").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.OneTimeToken{
		ID:        id,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// DeleteByUser removes all tokens for a user. Deleting none is valid.
func (r *OneTimeTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM `+r.table+` WHERE user_id = $1
	`, userID.String())
	if err != nil {
		return oops.Code("TOKEN_DELETE_BY_USER_FAILED").
			With("operation", "delete tokens by user").
			With("table", r.table).
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes expired tokens and returns the count.
func (r *OneTimeTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM `+r.table+` WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired tokens").
			With("table", r.table).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.OneTimeTokenRepository = (*OneTimeTokenRepository)(nil)
