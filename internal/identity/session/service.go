// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/talentgrid/identity/internal/identity/audit"
	"github.com/talentgrid/identity/internal/platform/apperr"
	"github.com/talentgrid/identity/internal/platform/constants"
	"github.com/talentgrid/identity/internal/platform/ctxutil"
	"github.com/talentgrid/identity/internal/platform/sec"
	"github.com/talentgrid/identity/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for minting and validating the token pair.
type TokenProvider interface {
	IssueAccessToken(input sec.AccessTokenInput) (string, error)
	IssueRefreshToken(userID, tokenFamily string) (string, error)
	ValidateRefreshToken(tokenString string) (*sec.RefreshClaims, error)
}

// ClaimsSource resolves the account attributes embedded in access tokens.
type ClaimsSource interface {
	AccessTokenInput(context context.Context, userID string) (sec.AccessTokenInput, error)
}

// LogoutStampWriter records a global-logout watermark on the account row.
type LogoutStampWriter interface {
	SetGlobalLogoutAt(context context.Context, userID string, at time.Time) error
}

// Service implements the refresh session lifecycle.
//
// # Review Process
//
// This service is critical for security. Any changes to rotation, replay
// detection, or inactivity handling must be reviewed by the security team.
type Service struct {
	store         Store
	tokenProvider TokenProvider
	claimsSource  ClaimsSource
	logoutStamps  LogoutStampWriter
	auditSink     audit.Sink

	// now is the clock source. Tests override it to drive inactivity and
	// expiry without sleeping.
	now func() time.Time
}

// NewService constructs a new session [Service] with necessary dependencies.
func NewService(
	store Store,
	tokenProv TokenProvider,
	claimsSource ClaimsSource,
	logoutStamps LogoutStampWriter,
	auditSink audit.Sink,
) *Service {
	return &Service{
		store:         store,
		tokenProvider: tokenProv,
		claimsSource:  claimsSource,
		logoutStamps:  logoutStamps,
		auditSink:     auditSink,
		now:           time.Now,
	}
}

// # Session Creation

/*
CreateSession opens a fresh refresh session for an already-authenticated user
and mints the initial token pair.

Description: Every login path (password, federation, SSO launch) ends here. The
session starts a brand new token family; the refresh token JWT is returned to
the caller and only its hash is persisted.

Parameters:
  - context: context.Context
  - userID: Authenticated account id
  - device: Client device metadata captured at login

Returns:
  - *TokenPair: Access + refresh tokens
  - err: Storage or signing errors
*/
func (service *Service) CreateSession(context context.Context, userID string, device DeviceMetadata) (*TokenPair, error) {
	return service.createSession(context, userID, "", device, SessionOptions{})
}

// CreateSessionWithOptions opens a session with explicit optional attributes:
// continuing an existing token family, or tagging the session with the
// deployment environment that opened it.
func (service *Service) CreateSessionWithOptions(context context.Context, userID string, device DeviceMetadata, options SessionOptions) (*TokenPair, error) {
	return service.createSession(context, userID, "", device, options)
}

// CreateClientSession opens a session minted through an SSO token exchange.
// The client application's display name rides in the access token so
// downstream services can attribute requests to the app that obtained them.
func (service *Service) CreateClientSession(context context.Context, userID, clientName string, device DeviceMetadata) (*TokenPair, error) {
	return service.createSession(context, userID, clientName, device, SessionOptions{})
}

func (service *Service) createSession(context context.Context, userID, clientName string, device DeviceMetadata, options SessionOptions) (*TokenPair, error) {
	now := service.now()

	// 1. A login starts a new token family unless the caller continues an
	// existing one.
	tokenFamily := options.TokenFamily
	if tokenFamily == "" {
		tokenFamily = sec.GenerateTokenFamily()
	}

	refreshToken, err := service.tokenProvider.IssueRefreshToken(userID, tokenFamily)
	if err != nil {
		return nil, apperr.Internal("Failed to create session", err)
	}

	// 2. Persist only the hash. A database leak must not leak live tokens.
	newSession := &Session{
		ID:             uuid.New(),
		UserID:         userID,
		TokenHash:      sec.HashToken(refreshToken),
		TokenFamily:    tokenFamily,
		Device:         device,
		Environment:    options.Environment,
		LastActivityAt: now,
		ExpiresAt:      now.Add(constants.RefreshTokenTTL),
		CreatedAt:      now,
	}
	if err := service.store.Create(context, newSession); err != nil {
		return nil, apperr.Internal("Failed to create session", err)
	}

	accessToken, err := service.issueAccessToken(context, userID, clientName)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(constants.AccessTokenTTL.Seconds()),
	}, nil
}

// # Token Rotation

/*
RotateRefreshToken exchanges a live refresh token for a new token pair and
retires the presented token.

Description: The rotation state machine. A structurally valid token whose hash
no longer matches any active session proves replay of a superseded token; the
entire token family is revoked on the spot. Sessions idle past the inactivity
cutoff are revoked with a distinct reason so clients can explain the forced
re-login.

Parameters:
  - context: context.Context
  - refreshToken: The raw refresh token JWT presented by the client
  - device: Client device metadata captured at refresh

Returns:
  - *TokenPair: Fresh access + refresh tokens under the same family
  - err: InvalidGrant, SessionInactive, or storage errors
*/
func (service *Service) RotateRefreshToken(context context.Context, refreshToken string, device DeviceMetadata) (*TokenPair, error) {
	logger := ctxutil.GetLogger(context)
	now := service.now()

	// 1. Signature and shape first. A forged token reveals nothing beyond
	// a generic invalid-grant response.
	claims, err := service.tokenProvider.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.InvalidGrant("Invalid refresh token")
	}
	userID := claims.Subject

	// 2. Look up the active session holding this exact token hash.
	tokenHash := sec.HashToken(refreshToken)
	activeSession, err := service.store.FindActive(context, userID, tokenHash, claims.TokenFamily)
	if err != nil {
		return nil, apperr.Internal("Failed to rotate refresh token", err)
	}

	// 3. No active session holds the hash: the token was already rotated
	// out. Someone is replaying it. Burn the whole family.
	if activeSession == nil {
		revokedCount, revokeErr := service.store.RevokeFamily(context, claims.TokenFamily)
		if revokeErr != nil {
			logger.ErrorContext(context, "token_family_revoke_failed",
				slog.String("token_family", claims.TokenFamily),
				slog.Any("error", revokeErr),
			)
		}
		logger.WarnContext(context, "refresh_token_reuse_detected",
			slog.String("user_id", userID),
			slog.String("token_family", claims.TokenFamily),
			slog.Int64("sessions_revoked", revokedCount),
		)
		service.auditSink.Log(context, audit.Entry{
			ActorUserID: userID,
			Action:      audit.ActionTokenReuse,
			EntityType:  "token_family",
			EntityID:    claims.TokenFamily,
			IP:          device.IP,
			UserAgent:   device.UserAgent,
		})
		return nil, apperr.InvalidGrant("Invalid refresh token").WithCause(ErrTokenReuse)
	}

	// 4. Absolute sliding expiry.
	if !now.Before(activeSession.ExpiresAt) {
		if revokeErr := service.store.Revoke(context, activeSession.ID); revokeErr != nil {
			logger.ErrorContext(context, "session_revoke_failed", slog.Any("error", revokeErr))
		}
		return nil, apperr.InvalidGrant("Session expired").WithCause(ErrSessionExpired)
	}

	// 5. Inactivity cutoff. A distinct error code lets clients explain the
	// forced re-login instead of showing a generic failure.
	if now.Sub(activeSession.LastActivityAt) >= constants.SessionInactivityTimeout {
		if revokeErr := service.store.Revoke(context, activeSession.ID); revokeErr != nil {
			logger.ErrorContext(context, "session_revoke_failed", slog.Any("error", revokeErr))
		}
		return nil, apperr.SessionInactive().WithCause(ErrSessionInactive)
	}

	// 6. Mint the replacement pair under the same family and swap the
	// stored hash in one guarded update. Losing the race is not replay:
	// the winner already rotated, so the loser simply fails closed and the
	// stale token it holds will trip step 3 if replayed later.
	newRefreshToken, err := service.tokenProvider.IssueRefreshToken(userID, activeSession.TokenFamily)
	if err != nil {
		return nil, apperr.Internal("Failed to rotate refresh token", err)
	}
	rotated, err := service.store.Rotate(
		context,
		activeSession.ID,
		tokenHash,
		sec.HashToken(newRefreshToken),
		device,
		now.Add(constants.RefreshTokenTTL),
		now,
	)
	if err != nil {
		return nil, apperr.Internal("Failed to rotate refresh token", err)
	}
	if !rotated {
		return nil, apperr.InvalidGrant("Invalid refresh token")
	}

	accessToken, err := service.issueAccessToken(context, userID, "")
	if err != nil {
		return nil, err
	}

	service.auditSink.Log(context, audit.Entry{
		ActorUserID: userID,
		Action:      audit.ActionTokenRotated,
		EntityType:  "session",
		EntityID:    activeSession.ID,
		IP:          device.IP,
		UserAgent:   device.UserAgent,
	})

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(constants.AccessTokenTTL.Seconds()),
	}, nil
}

// # Logout

/*
RevokeSessionByRefreshToken revokes the single session matching the presented
refresh token.

Description: Backs single-device logout. Invalid or already-revoked tokens are
treated as success: logout is idempotent and reveals nothing.

Parameters:
  - context: context.Context
  - refreshToken: The raw refresh token JWT presented by the client

Returns:
  - err: Storage errors only
*/
func (service *Service) RevokeSessionByRefreshToken(context context.Context, refreshToken string) error {
	claims, err := service.tokenProvider.ValidateRefreshToken(refreshToken)
	if err != nil {
		// Nothing to revoke. Logout still succeeds.
		return nil
	}

	revokedSession, err := service.store.RevokeByTokenHash(context, claims.Subject, sec.HashToken(refreshToken))
	if err != nil {
		return apperr.Internal("Failed to revoke session", err)
	}
	if revokedSession != nil {
		service.auditSink.Log(context, audit.Entry{
			ActorUserID: claims.Subject,
			Action:      audit.ActionLogout,
			EntityType:  "session",
			EntityID:    revokedSession.ID,
		})
	}
	return nil
}

/*
RevokeAllUserSessions revokes every session of a user and stamps the account
with a global-logout watermark.

Description: Backs logout-everywhere and administrative lockout. Access tokens
issued before the watermark are rejected at the middleware even though their
signatures remain valid until natural expiry.

Parameters:
  - context: context.Context
  - userID: The account whose sessions are revoked

Returns:
  - int64: Number of sessions revoked
  - err: Storage errors
*/
func (service *Service) RevokeAllUserSessions(context context.Context, userID string) (int64, error) {
	revokedCount, err := service.store.RevokeAllForUser(context, userID)
	if err != nil {
		return 0, apperr.Internal("Failed to revoke sessions", err)
	}

	// The watermark invalidates in-flight access tokens. Stamp failure is
	// fatal: without it, access tokens outlive the logout.
	if err := service.logoutStamps.SetGlobalLogoutAt(context, userID, service.now()); err != nil {
		return 0, apperr.Internal("Failed to revoke sessions", err)
	}

	service.auditSink.Log(context, audit.Entry{
		ActorUserID: userID,
		Action:      audit.ActionGlobalLogout,
		EntityType:  "user",
		EntityID:    userID,
		Changes:     map[string]any{"sessions_revoked": revokedCount},
	})
	return revokedCount, nil
}

// RevokeTokenFamily revokes every session in a token family. Exposed for
// administrative incident response.
func (service *Service) RevokeTokenFamily(context context.Context, tokenFamily string) (int64, error) {
	revokedCount, err := service.store.RevokeFamily(context, tokenFamily)
	if err != nil {
		return 0, apperr.Internal("Failed to revoke token family", err)
	}
	return revokedCount, nil
}

// # Maintenance

// CleanupExpiredSessions deletes sessions past their expiry. Called by the
// background sweeper.
func (service *Service) CleanupExpiredSessions(context context.Context) (int64, error) {
	deletedCount, err := service.store.DeleteExpired(context, service.now())
	if err != nil {
		return 0, apperr.Internal("Failed to clean up sessions", err)
	}
	return deletedCount, nil
}

// issueAccessToken resolves the account's claims and signs an access token.
func (service *Service) issueAccessToken(context context.Context, userID, clientName string) (string, error) {
	input, err := service.claimsSource.AccessTokenInput(context, userID)
	if err != nil {
		return "", err
	}
	input.ClientName = clientName
	accessToken, err := service.tokenProvider.IssueAccessToken(input)
	if err != nil {
		return "", apperr.Internal("Failed to issue access token", err)
	}
	return accessToken, nil
}
