// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth

import "errors"

// Sentinel errors for the closed set of auth failure kinds. Services wrap
// these with oops codes; the transport boundary matches on them with
// errors.Is and never exposes anything outside this set.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned for any sign-in failure caused by
	// the credentials themselves. The message is deliberately identical
	// whether the email is unknown or the password is wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when registering an email that already has
	// a user record.
	ErrEmailTaken = errors.New("a user with that email already exists")

	// ErrInvalidToken is returned for unknown, consumed, or expired
	// one-time tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNoSession is returned when a session token does not resolve to a
	// live session. Callers treat it as unauthenticated.
	ErrNoSession = errors.New("no session")

	// ErrRateLimited is returned when an attempt exceeds the configured
	// rate limit for its key.
	ErrRateLimited = errors.New("too many attempts, try again later")
)
