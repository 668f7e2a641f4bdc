// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

//go:build integration

package auth_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/stratakit/strata/internal/auth"
)

// The rate limiter is suite-wide and keys on email and client IP, so every
// spec works with fresh identifiers to stay under its own window.
var specSeq int

func freshIP() string {
	specSeq++
	return fmt.Sprintf("198.51.100.%d", specSeq%250+1)
}

func freshEmail() string {
	specSeq++
	return fmt.Sprintf("user%d@example.com", specSeq)
}

var _ = Describe("Sign-up", func() {
	var ctx context.Context
	var email string

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)
		email = freshEmail()
	})

	It("creates user, account, profile, session, and verify token", func() {
		result, err := env.authSvc.SignUp(ctx, email, "password1", freshIP())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Token).To(HaveLen(32))
		Expect(result.VerifyEmailToken).To(HaveLen(32))
		Expect(result.User.EmailVerifiedAt).To(BeNil())

		user, err := env.store.Users().GetByEmail(ctx, email)
		Expect(err).NotTo(HaveOccurred())
		Expect(user.ID).To(Equal(result.User.ID))

		account, err := env.store.Accounts().GetByUser(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(account.PasswordHash).To(HaveLen(128))

		profile, err := env.store.Profiles().GetByUser(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(profile.DisplayName).To(BeEmpty())

		session, userFromToken, err := env.sessions.ValidateSessionToken(ctx, result.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(session.UserID).To(Equal(user.ID))
		Expect(userFromToken.Email).To(Equal(email))
	})

	It("rejects a duplicate email case-insensitively", func() {
		_, err := env.authSvc.SignUp(ctx, email, "password1", freshIP())
		Expect(err).NotTo(HaveOccurred())

		_, err = env.authSvc.SignUp(ctx, strings.ToUpper(email), "password1", freshIP())
		Expect(err).To(MatchError(auth.ErrEmailTaken))

		var count int
		Expect(env.pool.QueryRow(ctx, "SELECT count(*) FROM users").Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})
})

var _ = Describe("Sign-in", func() {
	var ctx context.Context
	var email string

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)
		email = freshEmail()
		_, err := env.authSvc.SignUp(ctx, email, "password1", freshIP())
		Expect(err).NotTo(HaveOccurred())
	})

	It("issues a fresh session for valid credentials", func() {
		session, token, err := env.authSvc.SignIn(ctx, email, "password1", freshIP())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(HaveLen(32))
		Expect(session.ID).To(Equal(auth.HashSessionToken(token)))
		Expect(session.ExpiresAt).To(BeTemporally("~", time.Now().Add(30*24*time.Hour), time.Minute))
	})

	It("matches the email case-insensitively", func() {
		_, _, err := env.authSvc.SignIn(ctx, strings.ToUpper(email), "password1", freshIP())
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a wrong password", func() {
		_, _, err := env.authSvc.SignIn(ctx, email, "wrongpass", freshIP())
		Expect(err).To(MatchError(auth.ErrInvalidCredentials))
	})

	It("rate limits repeated attempts for the same email", func() {
		for i := 0; i < 3; i++ {
			_, _, _ = env.authSvc.SignIn(ctx, email, "wrongpass", freshIP())
		}
		_, _, err := env.authSvc.SignIn(ctx, email, "password1", freshIP())
		Expect(err).To(MatchError(auth.ErrRateLimited))
	})
})

var _ = Describe("Sessions", func() {
	var ctx context.Context
	var email, token string

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)
		email = freshEmail()
		result, err := env.authSvc.SignUp(ctx, email, "password1", freshIP())
		Expect(err).NotTo(HaveOccurred())
		token = result.Token
	})

	It("validates a live token", func() {
		session, user, err := env.sessions.ValidateSessionToken(ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(user.Email).To(Equal(email))
		Expect(session.IsExpiredAt(time.Now())).To(BeFalse())
	})

	It("rejects an invalidated token", func() {
		Expect(env.sessions.InvalidateSession(ctx, auth.HashSessionToken(token))).To(Succeed())

		_, _, err := env.sessions.ValidateSessionToken(ctx, token)
		Expect(err).To(MatchError(auth.ErrNoSession))
	})

	It("persists a renewal for a session in the back half of its lifetime", func() {
		sessionID := auth.HashSessionToken(token)
		nearExpiry := time.Now().Add(time.Hour)
		_, err := env.pool.Exec(ctx, "UPDATE sessions SET expires_at = $2 WHERE id = $1", sessionID, nearExpiry)
		Expect(err).NotTo(HaveOccurred())

		session, _, err := env.sessions.ValidateSessionToken(ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(session.ExpiresAt).To(BeTemporally("~", time.Now().Add(30*24*time.Hour), time.Minute))

		stored, err := env.store.Sessions().GetByID(ctx, sessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ExpiresAt).To(BeTemporally("~", session.ExpiresAt, time.Second))
	})

	It("deletes an expired session on validation", func() {
		sessionID := auth.HashSessionToken(token)
		_, err := env.pool.Exec(ctx, "UPDATE sessions SET expires_at = $2 WHERE id = $1",
			sessionID, time.Now().Add(-time.Minute))
		Expect(err).NotTo(HaveOccurred())

		_, _, err = env.sessions.ValidateSessionToken(ctx, token)
		Expect(err).To(MatchError(auth.ErrNoSession))

		_, err = env.store.Sessions().GetByID(ctx, sessionID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("reaps expired sessions in bulk", func() {
		_, err := env.pool.Exec(ctx, "UPDATE sessions SET expires_at = $1", time.Now().Add(-time.Minute))
		Expect(err).NotTo(HaveOccurred())

		count, err := env.store.Sessions().DeleteExpired(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeEquivalentTo(1))
	})
})

var _ = Describe("Email verification", func() {
	var ctx context.Context
	var email, verifyToken string

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)
		email = freshEmail()
		result, err := env.authSvc.SignUp(ctx, email, "password1", freshIP())
		Expect(err).NotTo(HaveOccurred())
		verifyToken = result.VerifyEmailToken
	})

	It("marks the email verified and consumes the token", func() {
		userID, err := env.authSvc.VerifyEmail(ctx, verifyToken)
		Expect(err).NotTo(HaveOccurred())

		user, err := env.store.Users().GetByID(ctx, userID)
		Expect(err).NotTo(HaveOccurred())
		Expect(user.EmailVerifiedAt).NotTo(BeNil())

		_, err = env.authSvc.VerifyEmail(ctx, verifyToken)
		Expect(err).To(MatchError(auth.ErrInvalidToken))
	})

	It("re-issuing replaces the previous token", func() {
		user, err := env.store.Users().GetByEmail(ctx, email)
		Expect(err).NotTo(HaveOccurred())

		reissued, err := env.authSvc.RequestEmailVerification(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(reissued).NotTo(Equal(verifyToken))

		_, err = env.authSvc.VerifyEmail(ctx, verifyToken)
		Expect(err).To(MatchError(auth.ErrInvalidToken))

		_, err = env.authSvc.VerifyEmail(ctx, reissued)
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Password reset", func() {
	var ctx context.Context
	var email string

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)
		email = freshEmail()
		_, err := env.authSvc.SignUp(ctx, email, "password1", freshIP())
		Expect(err).NotTo(HaveOccurred())
	})

	It("rotates the password and kills every session", func() {
		_, signInToken, err := env.authSvc.SignIn(ctx, email, "password1", freshIP())
		Expect(err).NotTo(HaveOccurred())

		resetToken, err := env.resetSvc.RequestReset(ctx, email)
		Expect(err).NotTo(HaveOccurred())
		Expect(resetToken).To(HaveLen(32))

		Expect(env.resetSvc.ResetPassword(ctx, resetToken, "newpassword1")).To(Succeed())

		_, _, err = env.sessions.ValidateSessionToken(ctx, signInToken)
		Expect(err).To(MatchError(auth.ErrNoSession))

		_, _, err = env.authSvc.SignIn(ctx, email, "password1", freshIP())
		Expect(err).To(MatchError(auth.ErrInvalidCredentials))

		_, _, err = env.authSvc.SignIn(ctx, email, "newpassword1", freshIP())
		Expect(err).NotTo(HaveOccurred())
	})

	It("a reset token is single use", func() {
		resetToken, err := env.resetSvc.RequestReset(ctx, email)
		Expect(err).NotTo(HaveOccurred())

		Expect(env.resetSvc.ResetPassword(ctx, resetToken, "newpassword1")).To(Succeed())
		Expect(env.resetSvc.ResetPassword(ctx, resetToken, "another-pass1")).To(MatchError(auth.ErrInvalidToken))
	})

	It("an unknown email yields no token and no error", func() {
		token, err := env.resetSvc.RequestReset(ctx, "nobody@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(BeEmpty())
	})
})

var _ = Describe("Cascade deletes", func() {
	It("removes dependents when the user goes", func() {
		ctx := context.Background()
		truncateAll(ctx, env.pool)

		result, err := env.authSvc.SignUp(ctx, freshEmail(), "password1", freshIP())
		Expect(err).NotTo(HaveOccurred())

		Expect(env.store.Users().Delete(ctx, result.User.ID)).To(Succeed())

		for _, table := range []string{"accounts", "profiles", "sessions", "verify_email_tokens"} {
			var count int
			Expect(env.pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&count)).To(Succeed())
			Expect(count).To(BeZero(), table)
		}
	})
})
