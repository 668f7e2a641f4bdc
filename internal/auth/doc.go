// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package auth implements the session-based authentication subsystem:
// password hashing, opaque token generation, the sliding-renewal session
// manager, the credential-endpoint rate limiter, and the sign-in, sign-up,
// email-verification, and password-reset use cases.
//
// Persistence is behind small repository interfaces implemented in the
// postgres subpackage. Session records are keyed by the SHA-256 hash of the
// bearer token, so a database read alone never yields a usable credential.
package auth
