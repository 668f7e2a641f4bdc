// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"
)

// Credential-endpoint rate limit: at most SignInAttemptLimit attempts per
// key per SignInAttemptWindow.
const (
	SignInAttemptLimit  = 3
	SignInAttemptWindow = 10 * time.Second
)

// RateLimit bounds attempts per key within a trailing window.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// SignInRateLimit returns the limit applied ahead of sign-in and sign-up.
func SignInRateLimit() RateLimit {
	return RateLimit{Limit: SignInAttemptLimit, Window: SignInAttemptWindow}
}

// RateLimiter gates attempts per key. Implementations are fail-closed: an
// internal failure surfaces as an error, never as an allow.
type RateLimiter interface {
	// Allow records an attempt for key. Returns ErrRateLimited (wrapped)
	// once the count within the current window reaches the limit.
	Allow(ctx context.Context, key string, limit RateLimit) error
}

// rateWindow tracks attempts for one key. The window starts at the first
// attempt and rolls over once it elapses.
type rateWindow struct {
	count     int
	expiresAt time.Time
}

// MemoryRateLimiter is an in-process RateLimiter. State is per-instance;
// a multi-node deployment shares no counts across nodes, which the limiter
// contract explicitly permits.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow

	// now is a hook for deterministic time in tests.
	now func() time.Time
}

// NewMemoryRateLimiter creates an empty in-process limiter.
func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// NewMemoryRateLimiterWithClock creates a limiter with an injected clock.
func NewMemoryRateLimiterWithClock(now func() time.Time) *MemoryRateLimiter {
	l := NewMemoryRateLimiter()
	l.now = now
	return l
}

// Allow records an attempt for key and rejects once the limit is reached.
func (l *MemoryRateLimiter) Allow(_ context.Context, key string, limit RateLimit) error {
	if key == "" {
		return oops.Code("RATE_LIMIT_INVALID_KEY").Errorf("rate limit key cannot be empty")
	}
	if limit.Limit <= 0 || limit.Window <= 0 {
		return oops.Code("RATE_LIMIT_INVALID").Errorf("limit and window must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		l.windows[key] = &rateWindow{count: 1, expiresAt: now.Add(limit.Window)}
		return nil
	}

	if w.count >= limit.Limit {
		return oops.Code("RATE_LIMITED").
			With("key", key).
			With("retry_after", w.expiresAt.Sub(now).String()).
			Wrap(ErrRateLimited)
	}

	w.count++
	return nil
}

// Prune drops windows that have rolled over. Called opportunistically by
// long-running servers to bound memory.
func (l *MemoryRateLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.expiresAt) {
			delete(l.windows, key)
		}
	}
}

// Compile-time interface check.
var _ RateLimiter = (*MemoryRateLimiter)(nil)
