// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth

import (
	"context"
	"net/mail"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AccountType identifies the credential kind backing an account.
type AccountType string

// AccountTypeEmail is the only account type currently supported.
const AccountTypeEmail AccountType = "email"

// User is the identity anchor. Accounts, profiles, sessions, and one-time
// tokens are all owned by a user and cascade-deleted with it.
type User struct {
	ID              ulid.ULID
	Email           string
	EmailVerifiedAt *time.Time // nil until the verify-email token is consumed
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Account holds the credential material for one (user, account type) pair.
// At most one email-type account exists per user.
type Account struct {
	ID           ulid.ULID
	UserID       ulid.ULID
	AccountType  AccountType
	PasswordHash string
	Salt         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is 1:1 display metadata for a user. Not security-relevant.
type Profile struct {
	ID          ulid.ULID
	UserID      ulid.ULID
	DisplayName string
	Image       string
	Bio         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewUser creates a validated User instance.
func NewUser(email string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	now := time.Now()
	return &User{
		ID:        ulid.Make(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewAccount creates a validated email-type Account instance.
func NewAccount(userID ulid.ULID, passwordHash, salt string) (*Account, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("ACCOUNT_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if passwordHash == "" || salt == "" {
		return nil, oops.Code("ACCOUNT_INVALID_CREDENTIAL").Errorf("password hash and salt are required")
	}
	now := time.Now()
	return &Account{
		ID:           ulid.Make(),
		UserID:       userID,
		AccountType:  AccountTypeEmail,
		PasswordHash: passwordHash,
		Salt:         salt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewProfile creates a Profile for a user.
func NewProfile(userID ulid.ULID, displayName string) (*Profile, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("PROFILE_INVALID_USER").Errorf("user ID cannot be zero")
	}
	now := time.Now()
	return &Profile{
		ID:          ulid.Make(),
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ValidateEmail checks that the address parses per RFC 5322.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("invalid email address")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrEmailTaken (wrapped) when the
	// email unique constraint is violated.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// SetEmailVerified records the email verification timestamp.
	SetEmailVerified(ctx context.Context, id ulid.ULID, verifiedAt time.Time) error

	// Delete removes a user. Owned rows cascade at the storage layer.
	Delete(ctx context.Context, id ulid.ULID) error
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account.
	Create(ctx context.Context, account *Account) error

	// GetByUser retrieves the email-type account for a user.
	GetByUser(ctx context.Context, userID ulid.ULID) (*Account, error)

	// UpdatePassword replaces the password hash and salt for the user's
	// email-type account.
	UpdatePassword(ctx context.Context, userID ulid.ULID, passwordHash, salt string) error
}

// ProfileRepository manages profile persistence.
type ProfileRepository interface {
	// Create stores a new profile.
	Create(ctx context.Context, profile *Profile) error

	// GetByUser retrieves the profile for a user.
	GetByUser(ctx context.Context, userID ulid.ULID) (*Profile, error)
}

// Tx is a scoped transaction over the user-owning repositories. It is
// acquired at the start of a use case, committed on success, and rolled
// back on any error path. Rollback after Commit is a no-op.
type Tx interface {
	Users() UserRepository
	Accounts() AccountRepository
	Profiles() ProfileRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner starts scoped transactions. Implemented by the postgres store.
type TxBeginner interface {
	Begin(ctx context.Context) (Tx, error)
}
