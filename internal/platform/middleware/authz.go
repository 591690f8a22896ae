// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/talentgrid/identity/internal/platform/apperr"
	"github.com/talentgrid/identity/internal/platform/ctxutil"
	"github.com/talentgrid/identity/internal/platform/respond"
	"github.com/talentgrid/identity/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify access tokens in middleware.
//
// # Why an interface?
//
// Defining TokenVerifier here decouples the middleware from the [sec.TokenService]
// implementation, allowing us to easily inject mocks during unit testing.
type TokenVerifier interface {
	ValidateAccessToken(tokenString string) (*sec.AccessClaims, error)
}

// LogoutStampSource resolves a user's global-logout timestamp.
//
// Access tokens are otherwise stateless; this single lookup is what makes
// "log out everywhere" actually revoke tokens that have not yet expired.
type LogoutStampSource interface {
	GlobalLogoutAt(ctx context.Context, userID string) (unixSeconds int64, found bool, err error)
}

// Authenticate extracts and verifies the JWT from the Authorization header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, request proceeds as anonymous.
//  3. If present, parse and verify the JWT via [TokenVerifier].
//  4. Reject tokens issued before the user's global-logout stamp.
//  5. Inject [*sec.AccessClaims] into the request context for downstream use.
func Authenticate(verifier TokenVerifier, stamps LogoutStampSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get("Authorization")

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			// ── 3. Token Verification ─────────────────────────────────────────
			tokenStr := parts[1]
			claims, err := verifier.ValidateAccessToken(tokenStr)
			if err != nil {
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
				return
			}

			// ── 4. Global Logout Enforcement ──────────────────────────────────
			// A token minted before the user's last "log out everywhere" is dead
			// even though its own signature and expiry are still valid.
			if stamps != nil && claims.IssuedAt != nil {
				logoutAt, found, stampErr := stamps.GlobalLogoutAt(request.Context(), claims.Subject)
				if stampErr != nil {
					respond.Error(writer, request, apperr.Internal("Failed to resolve logout stamp", stampErr))
					return
				}
				if found && claims.IssuedAt.Unix() < logoutAt {
					respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
					return
				}
			}

			// ── 5. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithAuthUser(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
//
// # Flow
//  1. Check if [*sec.AccessClaims] exists in context.
//  2. If missing, abort with HTTP 401 Unauthorized.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		claims := ctxutil.GetAuthUser(request.Context())
		if claims == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks requests unless the authenticated user carries the
// required role claim.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate]. It automatically implies
// [RequireAuth] so you don't need to mount both.
func RequireRole(role sec.RoleType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := ctxutil.GetAuthUser(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────────
			if claims == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			hasRole := false
			for _, claim := range claims.Roles {
				if claim == string(role) {
					hasRole = true
					break
				}
			}
			if !hasRole {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
