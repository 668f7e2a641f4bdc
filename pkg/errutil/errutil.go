// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package errutil bridges oops errors and slog.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, the code and attached context are logged as attributes;
// for standard errors, just the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, errAttrs(err)...)
}

// LogWarn is LogError at warning level, for failures the caller recovered
// from.
func LogWarn(logger *slog.Logger, msg string, err error) {
	logger.Warn(msg, errAttrs(err)...)
}

func errAttrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
