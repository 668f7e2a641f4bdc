// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package httpapi

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie carrying the raw session bearer token.
const SessionCookieName = "session"

// CookiePolicy controls session cookie attributes.
type CookiePolicy struct {
	// Secure sets the Secure attribute. Disable only for plain-HTTP local
	// development.
	Secure bool
}

// setSessionCookie writes the session cookie. HttpOnly keeps the token
// away from scripts; SameSite=Lax blocks cross-site POSTs from carrying
// it while keeping top-level navigation working.
func (p CookiePolicy) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie immediately.
func (p CookiePolicy) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionTokenFromRequest reads the raw token from the session cookie.
// Returns "" when the cookie is absent.
func sessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
