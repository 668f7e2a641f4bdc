// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops unwraps err to its oops error or fails the test.
func requireOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "want an oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err is an oops error carrying the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code())
}

// AssertErrorContext asserts that err is an oops error whose context holds
// the given key/value pair.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	if assert.Contains(t, ctx, key) {
		assert.Equal(t, value, ctx[key])
	}
}
