// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package httpapi exposes the authentication use cases over a JSON HTTP
// API with cookie-based sessions.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/stratakit/strata/internal/auth"
	"github.com/stratakit/strata/internal/observability"
)

// maxBodyBytes bounds request bodies; every endpoint takes a small JSON
// document.
const maxBodyBytes = 16 << 10

// Handler serves the authentication endpoints.
type Handler struct {
	auth     *auth.Service
	resets   *auth.PasswordResetService
	sessions *auth.SessionManager
	cookies  CookiePolicy
	proxies  *ProxyTrust
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewHandler creates a Handler. metrics may be nil when the observability
// server is disabled.
func NewHandler(
	authSvc *auth.Service,
	resets *auth.PasswordResetService,
	sessions *auth.SessionManager,
	cookies CookiePolicy,
	proxies *ProxyTrust,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*Handler, error) {
	switch {
	case authSvc == nil:
		return nil, oops.Errorf("auth service is required")
	case resets == nil:
		return nil, oops.Errorf("password reset service is required")
	case sessions == nil:
		return nil, oops.Errorf("session manager is required")
	case proxies == nil:
		return nil, oops.Errorf("proxy trust is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		auth:     authSvc,
		resets:   resets,
		sessions: sessions,
		cookies:  cookies,
		proxies:  proxies,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Routes returns the API mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/sign-up", h.handleSignUp)
	mux.HandleFunc("POST /api/auth/sign-in", h.handleSignIn)
	mux.HandleFunc("POST /api/auth/sign-out", h.handleSignOut)
	mux.HandleFunc("GET /api/auth/session", h.handleSession)
	mux.HandleFunc("POST /api/auth/verify-email", h.handleVerifyEmail)
	mux.HandleFunc("POST /api/auth/password-reset/request", h.handleResetRequest)
	mux.HandleFunc("POST /api/auth/password-reset/confirm", h.handleResetConfirm)
	return mux
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

type sessionResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		EmailVerified: u.EmailVerifiedAt != nil,
	}
}

// decode reads a bounded JSON body. Unknown fields are rejected so typos
// in field names fail loudly instead of silently sending zero values.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return oops.Code("API_BAD_JSON").Wrap(err)
	}
	return nil
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code: codeBadRequest, Message: "malformed request body",
		}})
		return
	}

	result, err := h.auth.SignUp(r.Context(), req.Email, req.Password, h.proxies.ClientIP(r))
	if err != nil {
		h.countSignUp(err)
		writeError(w, h.logger, err)
		return
	}
	h.countSignUp(nil)

	// The verify-email token in the result is for the mail delivery layer,
	// not the HTTP response.
	h.cookies.setSessionCookie(w, result.Token, result.Session.ExpiresAt)
	writeJSON(w, http.StatusCreated, sessionResponse{
		User:      toUserResponse(result.User),
		ExpiresAt: result.Session.ExpiresAt,
	})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code: codeBadRequest, Message: "malformed request body",
		}})
		return
	}

	session, token, err := h.auth.SignIn(r.Context(), req.Email, req.Password, h.proxies.ClientIP(r))
	if err != nil {
		h.countSignIn(err)
		writeError(w, h.logger, err)
		return
	}
	h.countSignIn(nil)

	user, err := h.currentUser(r, token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.cookies.setSessionCookie(w, token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      toUserResponse(user),
		ExpiresAt: session.ExpiresAt,
	})
}

// currentUser resolves the freshly issued token to its user. The session
// was created moments ago, so this also exercises the same validation path
// every later request takes.
func (h *Handler) currentUser(r *http.Request, token string) (*auth.User, error) {
	_, user, err := h.sessions.ValidateSessionToken(r.Context(), token)
	return user, err
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := sessionTokenFromRequest(r); token != "" {
		if err := h.sessions.InvalidateSession(r.Context(), auth.HashSessionToken(token)); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	h.cookies.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromRequest(r)

	session, user, err := h.sessions.ValidateSessionToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			h.countSessionCheck("invalid")
			// A dead cookie is cleared so clients stop presenting it.
			h.cookies.clearSessionCookie(w)
		}
		writeError(w, h.logger, err)
		return
	}
	h.countSessionCheck("valid")

	// Re-issue the cookie so a sliding renewal reaches the client.
	h.cookies.setSessionCookie(w, token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      toUserResponse(user),
		ExpiresAt: session.ExpiresAt,
	})
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code: codeBadRequest, Message: "malformed request body",
		}})
		return
	}

	if _, err := h.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetRequestBody struct {
	Email string `json:"email"`
}

func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequestBody
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code: codeBadRequest, Message: "malformed request body",
		}})
		return
	}

	// The response is identical whether or not the email exists; the raw
	// token goes to the mail delivery layer only.
	if _, err := h.resets.RequestReset(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type resetConfirmBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmBody
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code: codeBadRequest, Message: "malformed request body",
		}})
		return
	}

	if err := h.resets.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, h.logger, err)
		return
	}
	// Sessions were invalidated server side; drop the client's cookie too.
	h.cookies.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) countSignIn(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case err == nil:
		h.metrics.SignInsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, auth.ErrRateLimited):
		h.metrics.SignInsTotal.WithLabelValues("rate_limited").Inc()
		h.metrics.RateLimitRejections.Inc()
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.metrics.SignInsTotal.WithLabelValues("invalid_credentials").Inc()
	default:
		h.metrics.SignInsTotal.WithLabelValues("error").Inc()
	}
}

func (h *Handler) countSignUp(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case err == nil:
		h.metrics.SignUpsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, auth.ErrRateLimited):
		h.metrics.SignUpsTotal.WithLabelValues("rate_limited").Inc()
		h.metrics.RateLimitRejections.Inc()
	case errors.Is(err, auth.ErrEmailTaken):
		h.metrics.SignUpsTotal.WithLabelValues("email_taken").Inc()
	default:
		h.metrics.SignUpsTotal.WithLabelValues("error").Inc()
	}
}

func (h *Handler) countSessionCheck(result string) {
	if h.metrics == nil {
		return
	}
	h.metrics.SessionChecksTotal.WithLabelValues(result).Inc()
}
