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

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db Querier
}

// NewAccountRepository creates a new AccountRepository over a pool or tx.
func NewAccountRepository(db Querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, user_id, account_type, password_hash, salt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		account.ID.String(),
		account.UserID.String(),
		string(account.AccountType),
		account.PasswordHash,
		account.Salt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("user_id", account.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByUser retrieves the email-type account for a user.
func (r *AccountRepository) GetByUser(ctx context.Context, userID ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, account_type, password_hash, salt, created_at, updated_at
		FROM accounts
		WHERE user_id = $1 AND account_type = $2
	`, userID.String(), string(auth.AccountTypeEmail))

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return account, nil
}

// UpdatePassword replaces the hash and salt on the user's email account.
// Salts are never reused, so both columns always change together.
func (r *AccountRepository) UpdatePassword(ctx context.Context, userID ulid.ULID, passwordHash, salt string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts SET password_hash = $3, salt = $4, updated_at = $5
		WHERE user_id = $1 AND account_type = $2
	`, userID.String(), string(auth.AccountTypeEmail), passwordHash, salt, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr       string
		userIDStr   string
		accountType string
		hash        string
		salt        string
		createdAt   time.Time
		updatedAt   time.Time
	)

	if err := row.Scan(&idStr, &userIDStr, &accountType, &hash, &salt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_USER_ID").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.Account{
		ID:           id,
		UserID:       userID,
		AccountType:  auth.AccountType(accountType),
		PasswordHash: hash,
		Salt:         salt,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
