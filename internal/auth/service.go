// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stratakit/strata/pkg/errutil"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// Dummy credential material used when the email does not resolve to a user
// or account, so sign-in verifies a hash either way and response time does
// not reveal which check failed. These never match any real password.
//
//nolint:gosec // G101: intentionally fake material for timing equalization, not a credential.
const (
	dummySalt         = "c3RyYXRhLWR1bW15LXNhbHQtbm90LWEtY3JlZGVudGlhbA=="
	dummyPasswordHash = "00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"
)

// Service composes the authentication use cases: sign-in, sign-up, and
// email verification.
type Service struct {
	db           TxBeginner
	users        UserRepository
	accounts     AccountRepository
	sessions     *SessionManager
	hasher       PasswordHasher
	limiter      RateLimiter
	verifyTokens OneTimeTokenRepository
	logger       *slog.Logger
	limit        RateLimit
}

// NewService creates a Service. All dependencies are required.
func NewService(
	db TxBeginner,
	users UserRepository,
	accounts AccountRepository,
	sessions *SessionManager,
	hasher PasswordHasher,
	limiter RateLimiter,
	verifyTokens OneTimeTokenRepository,
) (*Service, error) {
	switch {
	case db == nil:
		return nil, oops.Errorf("transaction beginner is required")
	case users == nil:
		return nil, oops.Errorf("users repository is required")
	case accounts == nil:
		return nil, oops.Errorf("accounts repository is required")
	case sessions == nil:
		return nil, oops.Errorf("session manager is required")
	case hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	case limiter == nil:
		return nil, oops.Errorf("rate limiter is required")
	case verifyTokens == nil:
		return nil, oops.Errorf("verify-email token repository is required")
	}

	return &Service{
		db:           db,
		users:        users,
		accounts:     accounts,
		sessions:     sessions,
		hasher:       hasher,
		limiter:      limiter,
		verifyTokens: verifyTokens,
		logger:       slog.Default(),
		limit:        SignInRateLimit(),
	}, nil
}

// SetRateLimit overrides the default credential-endpoint rate limit.
// Intended for wiring time, before the service handles requests.
func (s *Service) SetRateLimit(limit RateLimit) error {
	if limit.Limit <= 0 || limit.Window <= 0 {
		return oops.Code("RATE_LIMIT_INVALID").Errorf("limit and window must be positive")
	}
	s.limit = limit
	return nil
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(
	db TxBeginner,
	users UserRepository,
	accounts AccountRepository,
	sessions *SessionManager,
	hasher PasswordHasher,
	limiter RateLimiter,
	verifyTokens OneTimeTokenRepository,
	logger *slog.Logger,
) (*Service, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewService(db, users, accounts, sessions, hasher, limiter, verifyTokens)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// rateLimitAttempt gates a credential attempt by normalized email, and by
// client IP when one is known. The email key is the primary arbiter; the IP
// key is secondary because proxy-derived addresses are spoofable.
func (s *Service) rateLimitAttempt(ctx context.Context, email, clientIP string) error {
	limit := s.limit
	if err := s.limiter.Allow(ctx, "email:"+strings.ToLower(email), limit); err != nil {
		return err
	}
	if clientIP != "" {
		if err := s.limiter.Allow(ctx, "ip:"+clientIP, limit); err != nil {
			return err
		}
	}
	return nil
}

// SignIn authenticates a user by email and password and creates a session.
// Returns the session and the raw bearer token.
//
// Failures that depend on the credentials all surface as
// ErrInvalidCredentials with an identical message, and password
// verification runs even when the email is unknown, so neither the error
// nor the response time reveals whether the email exists.
func (s *Service) SignIn(ctx context.Context, email, password, clientIP string) (*Session, string, error) {
	if err := s.rateLimitAttempt(ctx, email, clientIP); err != nil {
		return nil, "", err
	}

	targetSalt, targetHash := dummySalt, dummyPasswordHash
	var user *User

	lookedUp, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		account, accErr := s.accounts.GetByUser(ctx, lookedUp.ID)
		if accErr == nil {
			user = lookedUp
			targetSalt, targetHash = account.Salt, account.PasswordHash
		} else if !errors.Is(accErr, ErrNotFound) {
			return nil, "", oops.Code("AUTH_SIGNIN_FAILED").
				With("operation", "get account by user").
				Wrap(accErr)
		}
	case errors.Is(err, ErrNotFound):
		// Fall through with dummy material.
	default:
		return nil, "", oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(password, targetSalt, targetHash)
	if err != nil {
		if user == nil {
			// Dummy verification errors carry no signal worth surfacing.
			return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		return nil, "", oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "verify password").
			Wrap(err)
	}

	if user == nil || !valid {
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := s.sessions.CreateSession(ctx, token, user.ID)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user signed in", "user_id", user.ID.String())
	return session, token, nil
}

// SignUpResult is the outcome of a successful registration.
type SignUpResult struct {
	User    *User
	Session *Session

	// Token is the raw session bearer token for the cookie.
	Token string

	// VerifyEmailToken is the one-time token to send in the verification
	// email. Empty if issuing it failed; registration still succeeded.
	VerifyEmailToken string
}

// SignUp registers a new user: user, email-type account, and profile are
// created in one transaction, then a verify-email token is issued and a
// session created. The email unique constraint at the storage layer is the
// arbiter under concurrent duplicate sign-ups; the pre-check only provides
// a friendlier fast path.
func (s *Service) SignUp(ctx context.Context, email, password, clientIP string) (*SignUpResult, error) {
	if err := s.rateLimitAttempt(ctx, email, clientIP); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, oops.Code("AUTH_EMAIL_TAKEN").Wrap(ErrEmailTaken)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	user, err := s.createUserBundle(ctx, email, password)
	if err != nil {
		return nil, err
	}

	result := &SignUpResult{User: user}

	// Issuing the verification token is best effort: the account exists and
	// the token can be re-requested, so a failure here must not undo signup.
	verifyToken, err := s.issueVerifyEmailToken(ctx, user.ID)
	if err != nil {
		errutil.LogError(s.logger, "failed to issue verify-email token", err)
	} else {
		result.VerifyEmailToken = verifyToken
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}
	session, err := s.sessions.CreateSession(ctx, token, user.ID)
	if err != nil {
		return nil, err
	}

	result.Session = session
	result.Token = token

	s.logger.Info("user registered", "user_id", user.ID.String())
	return result, nil
}

// createUserBundle creates the user, account, and profile atomically.
func (s *Service) createUserBundle(ctx context.Context, email, password string) (*User, error) {
	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "generate salt").
			Wrap(err)
	}
	passwordHash, err := s.hasher.Hash(password, salt)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email)
	if err != nil {
		return nil, err
	}
	account, err := NewAccount(user.ID, passwordHash, salt)
	if err != nil {
		return nil, err
	}
	profile, err := NewProfile(user.ID, "")
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	// Rollback after Commit is a no-op, so this covers every error path.
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // rollback of a committed tx is a no-op
	}()

	if err := tx.Users().Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			// Lost the race to another sign-up for the same email.
			return nil, oops.Code("AUTH_EMAIL_TAKEN").Wrap(ErrEmailTaken)
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}
	if err := tx.Accounts().Create(ctx, account); err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create account").
			Wrap(err)
	}
	if err := tx.Profiles().Create(ctx, profile); err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create profile").
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}

	return user, nil
}

// issueVerifyEmailToken creates or replaces the user's verification token.
func (s *Service) issueVerifyEmailToken(ctx context.Context, userID ulid.ULID) (string, error) {
	raw, err := GenerateRandomToken(OneTimeTokenLength)
	if err != nil {
		return "", err
	}
	token, err := NewOneTimeToken(userID, raw, time.Now().Add(VerifyEmailTokenTTL))
	if err != nil {
		return "", err
	}
	if err := s.verifyTokens.Upsert(ctx, token); err != nil {
		return "", oops.Code("VERIFY_TOKEN_CREATE_FAILED").
			With("operation", "upsert verify-email token").
			Wrap(err)
	}
	return raw, nil
}

// RequestEmailVerification issues a fresh verification token for the user,
// superseding any active one. Returns the raw token for sending via email;
// sending is not this service's job.
func (s *Service) RequestEmailVerification(ctx context.Context, userID ulid.ULID) (string, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("VERIFY_USER_NOT_FOUND").Wrap(ErrNotFound)
		}
		return "", oops.Code("VERIFY_REQUEST_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	return s.issueVerifyEmailToken(ctx, userID)
}

// VerifyEmail consumes a verification token and marks the owning user's
// email as verified. One-time use is enforced by deleting the token.
func (s *Service) VerifyEmail(ctx context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code("VERIFY_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	entry, err := s.verifyTokens.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code("VERIFY_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return ulid.ULID{}, oops.Code("VERIFY_FAILED").
			With("operation", "get verify-email token").
			Wrap(err)
	}

	if entry.IsExpiredAt(time.Now()) {
		// Expired tokens are reaped on sight.
		_ = s.verifyTokens.DeleteByUser(ctx, entry.UserID) //nolint:errcheck // best effort cleanup
		return ulid.ULID{}, oops.Code("VERIFY_TOKEN_EXPIRED").Wrap(ErrInvalidToken)
	}

	if err := s.users.SetEmailVerified(ctx, entry.UserID, time.Now()); err != nil {
		return ulid.ULID{}, oops.Code("VERIFY_FAILED").
			With("operation", "set email verified").
			With("user_id", entry.UserID.String()).
			Wrap(err)
	}

	if err := s.verifyTokens.DeleteByUser(ctx, entry.UserID); err != nil {
		return ulid.ULID{}, oops.Code("VERIFY_FAILED").
			With("operation", "delete consumed token").
			With("user_id", entry.UserID.String()).
			Wrap(err)
	}

	s.logger.Info("email verified", "user_id", entry.UserID.String())
	return entry.UserID, nil
}

// ValidatePassword checks the password against the length policy.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code("AUTH_INVALID_PASSWORD").Errorf("password cannot be empty")
	}
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
