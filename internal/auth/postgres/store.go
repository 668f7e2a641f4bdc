// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package postgres implements the auth repositories on PostgreSQL via pgx.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/stratakit/strata/internal/auth"
)

// Querier is the subset of pgx shared by pgxpool.Pool and pgx.Tx, so the
// same repository code runs inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the pool-backed repositories and starts transactions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Users returns a pool-backed user repository.
func (s *Store) Users() auth.UserRepository { return NewUserRepository(s.pool) }

// Accounts returns a pool-backed account repository.
func (s *Store) Accounts() auth.AccountRepository { return NewAccountRepository(s.pool) }

// Profiles returns a pool-backed profile repository.
func (s *Store) Profiles() auth.ProfileRepository { return NewProfileRepository(s.pool) }

// Sessions returns a pool-backed session repository.
func (s *Store) Sessions() auth.SessionRepository { return NewSessionRepository(s.pool) }

// VerifyEmailTokens returns the verify-email token repository.
func (s *Store) VerifyEmailTokens() auth.OneTimeTokenRepository {
	return NewOneTimeTokenRepository(s.pool, tableVerifyEmailTokens)
}

// ResetTokens returns the password reset token repository.
func (s *Store) ResetTokens() auth.OneTimeTokenRepository {
	return NewOneTimeTokenRepository(s.pool, tableResetTokens)
}

// Begin starts a scoped transaction exposing the user-owning repositories.
func (s *Store) Begin(ctx context.Context) (auth.Tx, error) {
	pgxTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	return &storeTx{tx: pgxTx}, nil
}

// storeTx adapts a pgx.Tx to auth.Tx.
type storeTx struct {
	tx pgx.Tx
}

func (t *storeTx) Users() auth.UserRepository       { return NewUserRepository(t.tx) }
func (t *storeTx) Accounts() auth.AccountRepository { return NewAccountRepository(t.tx) }
func (t *storeTx) Profiles() auth.ProfileRepository { return NewProfileRepository(t.tx) }

// Commit commits the transaction.
func (t *storeTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

// Rollback rolls the transaction back. Rolling back after Commit is a
// no-op, matching pgx semantics.
func (t *storeTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return oops.Code("TX_ROLLBACK_FAILED").Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.TxBeginner = (*Store)(nil)
