// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package store provides database connection and schema management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry policy for startup: the database is often the last
// dependency to come up in a fresh environment.
const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

// Connect opens a pgx pool and verifies connectivity with a bounded
// exponential backoff.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("STORE_INVALID_URL").Errorf("database URL is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectAttempts, retry.NewExponential(connectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_PING_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}
