// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

/*
Package auth implements first-party password authentication.

It verifies credentials against the account store and delegates session
lifecycle (token pairs, rotation, revocation) to the session service. Federated
login lives in the federation package; both converge on the same session
machinery.
*/
package auth

import (
	"context"

	"github.com/talentgrid/identity/internal/identity/audit"
	"github.com/talentgrid/identity/internal/identity/session"
	"github.com/talentgrid/identity/internal/identity/user"
	"github.com/talentgrid/identity/internal/platform/apperr"
	"github.com/talentgrid/identity/internal/platform/sec"
)

// # Contracts & Types

// SessionManager is the slice of the session service the login flow needs.
type SessionManager interface {
	CreateSession(context context.Context, userID string, device session.DeviceMetadata) (*session.TokenPair, error)
	RotateRefreshToken(context context.Context, refreshToken string, device session.DeviceMetadata) (*session.TokenPair, error)
	RevokeSessionByRefreshToken(context context.Context, refreshToken string) error
	RevokeAllUserSessions(context context.Context, userID string) (int64, error)
}

// Service implements password authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to credential
// verification must be reviewed by the security team.
type Service struct {
	userRepository user.Repository
	sessions       SessionManager
	auditSink      audit.Sink
}

// NewService constructs a new auth [Service] with necessary dependencies.
func NewService(userRepo user.Repository, sessions SessionManager, auditSink audit.Sink) *Service {
	return &Service{
		userRepository: userRepo,
		sessions:       sessions,
		auditSink:      auditSink,
	}
}

// # Login Flow

// LoginInput holds the credentials and device context of a login attempt.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// LoginResult bundles the minted token pair with the authenticated profile.
type LoginResult struct {
	*session.TokenPair
	User *user.User `json:"user"`
}

/*
Login verifies email and password credentials and opens a refresh session.

Description: Every failure path returns the same generic Unauthorized
response. Unknown email, wrong password, and federated-only accounts without a
password are indistinguishable to the caller, which prevents account
enumeration.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Token pair and user profile
  - err: Unauthorized or storage errors
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {

	// 1. Resolve the account. A miss yields the same response as a bad
	// password.
	account, err := service.userRepository.FindByEmail(context, input.Email)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// 2. Federated-only accounts carry no password hash and cannot use
	// this flow.
	if account.PasswordHash == "" || !sec.CheckPasswordHash(input.Password, account.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// 3. Open the session. A fresh login always starts a new token family.
	pair, err := service.sessions.CreateSession(context, account.ID, session.DeviceMetadata{
		UserAgent: input.UserAgent,
		IP:        input.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	service.auditSink.Log(context, audit.Entry{
		ActorUserID: account.ID,
		Action:      audit.ActionLogin,
		EntityType:  "user",
		EntityID:    account.ID,
		IP:          input.IPAddress,
		UserAgent:   input.UserAgent,
	})

	return &LoginResult{TokenPair: pair, User: account}, nil
}

// # Session Delegation

// Refresh rotates the presented refresh token into a new pair.
func (service *Service) Refresh(context context.Context, refreshToken, userAgent, ipAddress string) (*session.TokenPair, error) {
	return service.sessions.RotateRefreshToken(context, refreshToken, session.DeviceMetadata{
		UserAgent: userAgent,
		IP:        ipAddress,
	})
}

// Logout revokes the session behind the presented refresh token. Idempotent.
func (service *Service) Logout(context context.Context, refreshToken string) error {
	return service.sessions.RevokeSessionByRefreshToken(context, refreshToken)
}

// LogoutAll revokes every session of the user and stamps the global-logout
// watermark.
func (service *Service) LogoutAll(context context.Context, userID string) (int64, error) {
	return service.sessions.RevokeAllUserSessions(context, userID)
}
