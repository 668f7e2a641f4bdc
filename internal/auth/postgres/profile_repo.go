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

// ProfileRepository implements auth.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	db Querier
}

// NewProfileRepository creates a new ProfileRepository over a pool or tx.
func NewProfileRepository(db Querier) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create stores a new profile.
func (r *ProfileRepository) Create(ctx context.Context, profile *auth.Profile) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO profiles (id, user_id, display_name, image, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		profile.ID.String(),
		profile.UserID.String(),
		profile.DisplayName,
		profile.Image,
		profile.Bio,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return oops.Code("PROFILE_CREATE_FAILED").
			With("operation", "insert profile").
			With("user_id", profile.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByUser retrieves the profile for a user.
func (r *ProfileRepository) GetByUser(ctx context.Context, userID ulid.ULID) (*auth.Profile, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, display_name, image, bio, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID.String())

	var (
		idStr       string
		userIDStr   string
		displayName string
		image       string
		bio         string
		createdAt   time.Time
		updatedAt   time.Time
	)
	err := row.Scan(&idStr, &userIDStr, &displayName, &image, &bio, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PROFILE_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").
			With("operation", "get profile by user").
			With("user_id", userID.String()).
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PROFILE_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	ownerID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("PROFILE_INVALID_USER_ID").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.Profile{
		ID:          id,
		UserID:      ownerID,
		DisplayName: displayName,
		Image:       image,
		Bio:         bio,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.ProfileRepository = (*ProfileRepository)(nil)
