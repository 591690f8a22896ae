// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package apperr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgrid/identity/internal/platform/apperr"
)

/*
TestInternal_GenericClientMessage tests that server-side failures never leak
their operation or cause into the client-facing message.
*/
func TestInternal_GenericClientMessage(t *testing.T) {
	cause := errors.New("pq: connection refused")
	appError := apperr.Internal("Failed to rotate refresh token", cause)

	assert.Equal(t, "INTERNAL_ERROR", appError.Code)
	assert.Equal(t, http.StatusInternalServerError, appError.HTTPStatus)
	assert.Equal(t, "An unexpected error occurred", appError.Message)
	assert.NotContains(t, appError.Error(), "rotate")
	assert.NotContains(t, appError.Error(), "connection refused")
}

/*
TestInternal_CauseChain tests that the operation and underlying cause remain
reachable for server-side logging and errors.Is matching.
*/
func TestInternal_CauseChain(t *testing.T) {
	sentinel := errors.New("storage down")
	appError := apperr.Internal("Failed to resolve roles", sentinel)

	require.NotNil(t, appError.Cause)
	assert.True(t, errors.Is(appError, sentinel))
	assert.Contains(t, appError.Cause.Error(), "Failed to resolve roles")
	assert.Contains(t, appError.Cause.Error(), "storage down")
}

/*
TestInternal_EmptyOperation tests that an empty operation keeps the bare cause.
*/
func TestInternal_EmptyOperation(t *testing.T) {
	sentinel := errors.New("boom")
	appError := apperr.Internal("", sentinel)

	require.NotNil(t, appError.Cause)
	assert.Equal(t, sentinel, appError.Cause)
}

/*
TestWithCause_PreservesResponseShape tests that attaching an internal sentinel
does not alter the client-visible code or message.
*/
func TestWithCause_PreservesResponseShape(t *testing.T) {
	sentinel := errors.New("reuse detected")
	base := apperr.InvalidGrant("Invalid refresh token")
	withCause := base.WithCause(sentinel)

	assert.Equal(t, base.Code, withCause.Code)
	assert.Equal(t, base.Message, withCause.Message)
	assert.True(t, errors.Is(withCause, sentinel))
	assert.Nil(t, base.Cause)
}
