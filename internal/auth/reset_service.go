// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// PasswordResetService handles the password reset flow.
type PasswordResetService struct {
	users    UserRepository
	accounts AccountRepository
	resets   OneTimeTokenRepository
	sessions *SessionManager
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewPasswordResetService creates a PasswordResetService.
func NewPasswordResetService(
	users UserRepository,
	accounts AccountRepository,
	resets OneTimeTokenRepository,
	sessions *SessionManager,
	hasher PasswordHasher,
) (*PasswordResetService, error) {
	switch {
	case users == nil:
		return nil, oops.Errorf("users repository is required")
	case accounts == nil:
		return nil, oops.Errorf("accounts repository is required")
	case resets == nil:
		return nil, oops.Errorf("reset token repository is required")
	case sessions == nil:
		return nil, oops.Errorf("session manager is required")
	case hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	}

	return &PasswordResetService{
		users:    users,
		accounts: accounts,
		resets:   resets,
		sessions: sessions,
		hasher:   hasher,
		logger:   slog.Default(),
	}, nil
}

// NewPasswordResetServiceWithLogger creates a PasswordResetService with an
// explicit logger.
func NewPasswordResetServiceWithLogger(
	users UserRepository,
	accounts AccountRepository,
	resets OneTimeTokenRepository,
	sessions *SessionManager,
	hasher PasswordHasher,
	logger *slog.Logger,
) (*PasswordResetService, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewPasswordResetService(users, accounts, resets, sessions, hasher)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// RequestReset issues a reset token for the account with the given email,
// superseding any active one. Returns the raw token for sending via email
// (sending is not this service's job). If no user has the email, it
// returns an empty token and no error to prevent email enumeration.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	raw, err := GenerateRandomToken(OneTimeTokenLength)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	token, err := NewOneTimeToken(user.ID, raw, time.Now().Add(ResetTokenTTL))
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "build reset token").
			Wrap(err)
	}

	if err := s.resets.Upsert(ctx, token); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "upsert reset token").
			Wrap(err)
	}

	return raw, nil
}

// ResetPassword consumes a reset token: the account gets a fresh salt and
// hash, the token is deleted, and every session for the user is
// invalidated so a stolen session does not survive the reset.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if token == "" {
		return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	entry, err := s.resets.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return oops.Code("RESET_FAILED").
			With("operation", "get reset token").
			Wrap(err)
	}

	if entry.IsExpiredAt(time.Now()) {
		_ = s.resets.DeleteByUser(ctx, entry.UserID) //nolint:errcheck // best effort cleanup
		return oops.Code("RESET_TOKEN_EXPIRED").Wrap(ErrInvalidToken)
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return oops.Code("RESET_FAILED").
			With("operation", "generate salt").
			Wrap(err)
	}
	passwordHash, err := s.hasher.Hash(newPassword, salt)
	if err != nil {
		return oops.Code("RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, entry.UserID, passwordHash, salt); err != nil {
		return oops.Code("RESET_FAILED").
			With("operation", "update password").
			With("user_id", entry.UserID.String()).
			Wrap(err)
	}

	// The password changed; the consumed token and any live sessions for
	// the user are cleanup. Failures here do not undo the update.
	_ = s.resets.DeleteByUser(ctx, entry.UserID) //nolint:errcheck // password was already updated
	if err := s.sessions.InvalidateUserSessions(ctx, entry.UserID); err != nil {
		s.logger.Warn("failed to invalidate sessions after password reset",
			"user_id", entry.UserID.String(),
			"error", err)
	}

	s.logger.Info("password reset", "user_id", entry.UserID.String())
	return nil
}
