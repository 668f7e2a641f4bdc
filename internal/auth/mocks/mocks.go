// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/stratakit/strata/internal/auth"
)

// testingT is the subset of *testing.T the mock constructors need.
type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository mocks auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository that asserts its
// expectations at test cleanup.
func NewMockUserRepository(t testingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) SetEmailVerified(ctx context.Context, id ulid.ULID, verifiedAt time.Time) error {
	args := m.Called(ctx, id, verifiedAt)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ auth.UserRepository = (*MockUserRepository)(nil)

// MockAccountRepository mocks auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a MockAccountRepository that asserts its
// expectations at test cleanup.
func NewMockAccountRepository(t testingT) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByUser(ctx context.Context, userID ulid.ULID) (*auth.Account, error) {
	args := m.Called(ctx, userID)
	account, _ := args.Get(0).(*auth.Account)
	return account, args.Error(1)
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, userID ulid.ULID, passwordHash, salt string) error {
	args := m.Called(ctx, userID, passwordHash, salt)
	return args.Error(0)
}

var _ auth.AccountRepository = (*MockAccountRepository)(nil)

// MockProfileRepository mocks auth.ProfileRepository.
type MockProfileRepository struct {
	mock.Mock
}

// NewMockProfileRepository creates a MockProfileRepository that asserts its
// expectations at test cleanup.
func NewMockProfileRepository(t testingT) *MockProfileRepository {
	m := &MockProfileRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockProfileRepository) Create(ctx context.Context, profile *auth.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfileRepository) GetByUser(ctx context.Context, userID ulid.ULID) (*auth.Profile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(*auth.Profile)
	return profile, args.Error(1)
}

var _ auth.ProfileRepository = (*MockProfileRepository)(nil)

// MockSessionRepository mocks auth.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

// NewMockSessionRepository creates a MockSessionRepository that asserts its
// expectations at test cleanup.
func NewMockSessionRepository(t testingT) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionRepository) Create(ctx context.Context, session *auth.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*auth.Session, error) {
	args := m.Called(ctx, id)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockSessionRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	args := m.Called(ctx, id, expiresAt)
	return args.Error(0)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

var _ auth.SessionRepository = (*MockSessionRepository)(nil)

// MockOneTimeTokenRepository mocks auth.OneTimeTokenRepository.
type MockOneTimeTokenRepository struct {
	mock.Mock
}

// NewMockOneTimeTokenRepository creates a MockOneTimeTokenRepository that
// asserts its expectations at test cleanup.
func NewMockOneTimeTokenRepository(t testingT) *MockOneTimeTokenRepository {
	m := &MockOneTimeTokenRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOneTimeTokenRepository) Upsert(ctx context.Context, token *auth.OneTimeToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockOneTimeTokenRepository) GetByToken(ctx context.Context, token string) (*auth.OneTimeToken, error) {
	args := m.Called(ctx, token)
	entry, _ := args.Get(0).(*auth.OneTimeToken)
	return entry, args.Error(1)
}

func (m *MockOneTimeTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockOneTimeTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

var _ auth.OneTimeTokenRepository = (*MockOneTimeTokenRepository)(nil)

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher that asserts its
// expectations at test cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password, salt string) (string, error) {
	args := m.Called(password, salt)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, salt, hash string) (bool, error) {
	args := m.Called(password, salt, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) GenerateSalt() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

var _ auth.PasswordHasher = (*MockPasswordHasher)(nil)

// MockRateLimiter mocks auth.RateLimiter.
type MockRateLimiter struct {
	mock.Mock
}

// NewMockRateLimiter creates a MockRateLimiter that asserts its
// expectations at test cleanup.
func NewMockRateLimiter(t testingT) *MockRateLimiter {
	m := &MockRateLimiter{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit auth.RateLimit) error {
	args := m.Called(ctx, key, limit)
	return args.Error(0)
}

var _ auth.RateLimiter = (*MockRateLimiter)(nil)

// MockTx mocks auth.Tx.
type MockTx struct {
	mock.Mock
}

// NewMockTx creates a MockTx that asserts its expectations at test cleanup.
func NewMockTx(t testingT) *MockTx {
	m := &MockTx{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTx) Users() auth.UserRepository {
	args := m.Called()
	repo, _ := args.Get(0).(auth.UserRepository)
	return repo
}

func (m *MockTx) Accounts() auth.AccountRepository {
	args := m.Called()
	repo, _ := args.Get(0).(auth.AccountRepository)
	return repo
}

func (m *MockTx) Profiles() auth.ProfileRepository {
	args := m.Called()
	repo, _ := args.Get(0).(auth.ProfileRepository)
	return repo
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ auth.Tx = (*MockTx)(nil)

// MockTxBeginner mocks auth.TxBeginner.
type MockTxBeginner struct {
	mock.Mock
}

// NewMockTxBeginner creates a MockTxBeginner that asserts its expectations
// at test cleanup.
func NewMockTxBeginner(t testingT) *MockTxBeginner {
	m := &MockTxBeginner{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTxBeginner) Begin(ctx context.Context) (auth.Tx, error) {
	args := m.Called(ctx)
	tx, _ := args.Get(0).(auth.Tx)
	return tx, args.Error(1)
}

var _ auth.TxBeginner = (*MockTxBeginner)(nil)
