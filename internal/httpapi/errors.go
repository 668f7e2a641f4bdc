// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/stratakit/strata/internal/auth"
	"github.com/stratakit/strata/pkg/errutil"
)

// API error codes surfaced to clients. Internal failure detail never
// crosses the wire; it goes to the log instead.
const (
	codeBadRequest      = "BAD_REQUEST"
	codeUnauthorized    = "UNAUTHORIZED"
	codeTooManyRequests = "TOO_MANY_REQUESTS"
	codeInternal        = "INTERNAL"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps a service error to an HTTP response. Every error that
// depends on client input keeps its message; everything else collapses to
// an opaque internal error.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		status int
		code   string
		msg    string
	)

	switch {
	case errors.Is(err, auth.ErrRateLimited):
		status, code = http.StatusTooManyRequests, codeTooManyRequests
		msg = "too many attempts, try again later"
	case errors.Is(err, auth.ErrNoSession):
		status, code = http.StatusUnauthorized, codeUnauthorized
		msg = "not signed in"
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, code = http.StatusBadRequest, codeBadRequest
		msg = auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrEmailTaken):
		status, code = http.StatusBadRequest, codeBadRequest
		msg = auth.ErrEmailTaken.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		status, code = http.StatusBadRequest, codeBadRequest
		msg = "invalid or expired token"
	case isValidationError(err):
		status, code = http.StatusBadRequest, codeBadRequest
		msg = err.Error()
	default:
		status, code = http.StatusInternalServerError, codeInternal
		msg = "internal error"
		errutil.LogError(logger, "request failed", err)
	}

	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

// isValidationError reports whether the error came from input validation
// rather than an infrastructure failure.
func isValidationError(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	switch oopsErr.Code() {
	case "AUTH_INVALID_EMAIL", "AUTH_INVALID_PASSWORD", "AUTH_EMPTY_PASSWORD":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client is gone
	json.NewEncoder(w).Encode(body)
}
