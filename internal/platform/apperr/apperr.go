// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

/*
Package apperr defines the centralized error handling framework for the
TalentGrid identity platform.

It provides a rich error type that bridges the gap between low-level Domain/Storage
errors and high-level HTTP responses.

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Taxonomy: Authentication failures are deliberately coarse (UNAUTHORIZED) so
    responses never become an oracle for which part of the token lifecycle failed.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the service layer should be wrapped as an [AppError] to ensure
consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the canonical error type for the identity API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries or which
// token check failed).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "INVALID_GRANT").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause returns a shallow copy of the error carrying the given cause.
//
// The cause participates in [errors.Is] matching but is never serialized,
// which lets services attach internal sentinels (e.g. reuse detection) to a
// deliberately generic client response.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Client") // Returns "Client not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # OAuth2 / Session Errors

// InvalidClient creates a 401 [AppError] for unknown, inactive, or
// wrong-secret OAuth clients.
func InvalidClient() *AppError {
	return &AppError{
		Code:       "INVALID_CLIENT",
		Message:    "Invalid client credentials",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// InvalidRedirectURI creates a 400 [AppError] for a redirect_uri that is not
// registered for the client.
func InvalidRedirectURI() *AppError {
	return &AppError{
		Code:       "INVALID_REDIRECT_URI",
		Message:    "redirect_uri is not registered for this client",
		HTTPStatus: http.StatusBadRequest,
	}
}

// InvalidLogoutURI creates a 400 [AppError] for a logout URI that fails the
// HTTPS + domain-allowlist policy.
func InvalidLogoutURI(msg string) *AppError {
	return &AppError{
		Code:       "INVALID_LOGOUT_URI",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
	}
}

// InvalidGrant creates a 400 [AppError]. It deliberately carries a generic
// message so callers never distinguish between a missing, expired, consumed,
// replayed, or PKCE-mismatched credential.
func InvalidGrant(msg string) *AppError {
	return &AppError{
		Code:       "INVALID_GRANT",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
	}
}

// SessionInactive creates a 401 [AppError] with a distinct code so clients can
// show "please log in again" instead of silently retrying.
func SessionInactive() *AppError {
	return &AppError{
		Code:       "SESSION_INACTIVE",
		Message:    "Your session timed out due to inactivity. Please log in again.",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// EmailNotVerified creates a 400 [AppError] for federation attempts where the
// provider does not attest the email address.
func EmailNotVerified(provider string) *AppError {
	return &AppError{
		Code:       "EMAIL_NOT_VERIFIED",
		Message:    fmt.Sprintf("Your %s email address is not verified", provider),
		HTTPStatus: http.StatusBadRequest,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
//
// The client always receives the same generic message; the operation
// description and the cause ride in the Cause chain so 5xx log lines say what
// failed without the response becoming an oracle.
func Internal(operation string, cause error) *AppError {
	wrapped := cause
	if operation != "" {
		wrapped = fmt.Errorf("%s: %w", operation, cause)
	}
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      wrapped,
	}
}

// ServiceUnavailable creates a 503 [AppError] for maintenance mode.
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
