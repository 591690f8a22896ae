// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

/*
Package constants provides centralized, immutable values for the identity platform.

It defines default timeouts, token lifetimes, rate limits, and cross-cutting keys
that are shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Token Lifetimes: Access/refresh/authorization-code durations.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: JWT issuers and cookie configuration.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "talentgrid-identity"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Token Lifetimes

const (
	// AccessTokenTTL is the duration a JWT access token remains valid.
	// Short (15m) to minimize the impact of a leaked token. Every reported
	// expires_in value is derived from this constant, never hard-coded.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the sliding window a session/refresh token remains valid.
	// Every successful rotation pushes the session expiry out by this amount.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// SessionInactivityTimeout revokes sessions that have not rotated their
	// refresh token within this window, even if ExpiresAt has not passed.
	SessionInactivityTimeout = 72 * time.Hour

	// ServiceTokenTTL is the lifetime of machine-to-machine tokens.
	ServiceTokenTTL = 1 * time.Hour

	// AuthorizationCodeTTL is the absolute lifetime of an OAuth2 authorization code.
	AuthorizationCodeTTL = 60 * time.Second

	// AuthorizationCodeGrace keeps a consumed code visible as "already used"
	// for a short window so near-simultaneous retries are distinguishable
	// from unknown codes without enabling replay.
	AuthorizationCodeGrace = 5 * time.Second

	// AuthorizationCodeSweepInterval is how often expired codes are purged.
	AuthorizationCodeSweepInterval = 30 * time.Second

	// SessionSweepInterval is how often expired session rows are deleted.
	SessionSweepInterval = 1 * time.Hour

	// SecureTokenLength is the byte length of random secure tokens
	// (refresh tokens, authorization codes, client secrets, state values).
	SecureTokenLength = 32
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "id.talentgrid.dev"

	// RefreshTokenCookieName is the name of the cookie that stores the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// RefreshTokenCookiePath is the scoped path for the refresh token cookie.
	RefreshTokenCookiePath = "/api/v1/auth"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
)

// # Database Schemas

const (
	SchemaIdentity = "identity"
	SchemaSSO      = "sso"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixAuthCode = "sso:authcode:"
)
