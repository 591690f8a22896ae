// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

/*
Package sso implements the OAuth2 authorization-code flow (with PKCE) that
first-party applications use to obtain platform tokens.

# Flow

An authenticated user hits authorize, which binds a single-use code to the
user, client, redirect URI and PKCE parameters. The application then calls
token with the code (and verifier); the exchange validates every binding and
mints a platform session. Every failure on the token path collapses into the
same invalid-grant response.
*/
package sso

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"net/url"

	"github.com/talentgrid/identity/internal/identity/audit"
	"github.com/talentgrid/identity/internal/identity/session"
	"github.com/talentgrid/identity/internal/identity/user"
	"github.com/talentgrid/identity/internal/platform/apperr"
	"github.com/talentgrid/identity/internal/platform/ctxutil"
	"github.com/talentgrid/identity/internal/platform/sec"
	"github.com/talentgrid/identity/internal/sso/authcode"
	"github.com/talentgrid/identity/internal/sso/client"
)

// # Contracts & Types

// ClientSessionOpener is the slice of the session service the token exchange
// needs.
type ClientSessionOpener interface {
	CreateClientSession(context context.Context, userID, clientName string, device session.DeviceMetadata) (*session.TokenPair, error)
}

// grantAuthorizationCode is the only grant this service implements.
const grantAuthorizationCode = "authorization_code"

// PKCE challenge methods accepted by authorize.
const (
	pkceMethodS256  = "S256"
	pkceMethodPlain = "plain"
)

// Service orchestrates the authorization-code flow.
type Service struct {
	clients  *client.Service
	codes    authcode.Store
	users    user.Repository
	roles    user.RoleRepository
	sessions ClientSessionOpener
	audit    audit.Sink
}

// NewService constructs an SSO [Service] with necessary dependencies.
func NewService(
	clients *client.Service,
	codes authcode.Store,
	users user.Repository,
	roles user.RoleRepository,
	sessions ClientSessionOpener,
	auditSink audit.Sink,
) *Service {
	return &Service{
		clients:  clients,
		codes:    codes,
		users:    users,
		roles:    roles,
		sessions: sessions,
		audit:    auditSink,
	}
}

// # Authorize

// AuthorizeInput holds the query parameters of an authorize call for an
// already-authenticated user.
type AuthorizeInput struct {
	UserID              string
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

/*
Authorize mints an authorization code and builds the callback redirect URL.

Description: The client must be active and the redirect URI byte-equal to a
registered one; nothing is ever appended to an unregistered URI. A PKCE
challenge, when present, must name a supported method. The caller performs
the actual HTTP redirect.

Parameters:
  - context: context.Context
  - input: AuthorizeInput

Returns:
  - string: The redirect URL with code (and state) appended
  - err: INVALID_CLIENT, INVALID_REDIRECT_URI, or validation errors
*/
func (service *Service) Authorize(context context.Context, input AuthorizeInput) (string, error) {

	// 1. Client must exist and be active. No secret on this leg.
	registered, err := service.clients.ValidateClient(context, input.ClientID, "")
	if err != nil {
		return "", err
	}

	// 2. Byte-exact redirect URI match. A miss must not leak which URIs
	// are registered.
	if !service.clients.ValidateRedirectURI(registered, input.RedirectURI) {
		return "", apperr.InvalidRedirectURI()
	}

	// 3. PKCE method must be supported when a challenge is present.
	if input.CodeChallenge != "" {
		if input.CodeChallengeMethod != pkceMethodS256 && input.CodeChallengeMethod != pkceMethodPlain {
			return "", apperr.ValidationError("Invalid PKCE parameters", apperr.FieldError{Field: "code_challenge_method", Message: "must be S256 or plain"})
		}
	}

	// 4. Bind and mint the single-use code.
	code, err := service.codes.CreateCode(context, authcode.CreateInput{
		UserID:              input.UserID,
		ClientID:            input.ClientID,
		RedirectURI:         input.RedirectURI,
		State:               input.State,
		CodeChallenge:       input.CodeChallenge,
		CodeChallengeMethod: input.CodeChallengeMethod,
	})
	if err != nil {
		return "", apperr.Internal("Failed to create authorization code", err)
	}

	service.audit.Log(context, audit.Entry{
		ActorUserID: input.UserID,
		Action:      audit.ActionSSOCodeIssued,
		EntityType:  "sso_client",
		EntityID:    input.ClientID,
	})

	return appendQuery(input.RedirectURI, code, input.State)
}

/*
LaunchSSO builds an authorize redirect for a client's first registered
redirect URI with a freshly generated state.

Parameters:
  - context: context.Context
  - userID: The authenticated user
  - clientID: Public client id

Returns:
  - string: The redirect URL
  - err: INVALID_CLIENT or storage errors
*/
func (service *Service) LaunchSSO(context context.Context, userID, clientID string) (string, error) {
	registered, err := service.clients.ValidateClient(context, clientID, "")
	if err != nil {
		return "", err
	}
	if len(registered.RedirectURIs) == 0 {
		return "", apperr.InvalidRedirectURI()
	}

	state, err := sec.GenerateSecureToken(16)
	if err != nil {
		return "", apperr.Internal("Failed to launch SSO", err)
	}

	return service.Authorize(context, AuthorizeInput{
		UserID:      userID,
		ClientID:    clientID,
		RedirectURI: registered.RedirectURIs[0].URI,
		State:       state,
	})
}

// # Token Exchange

// ExchangeTokenInput holds the form parameters of a token call.
type ExchangeTokenInput struct {
	GrantType    string
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CodeVerifier string
	UserAgent    string
	IPAddress    string
}

// TokenResponse is the RFC 6749 token payload plus the minimal profile the
// consuming application renders before its first API call.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *UserProfile `json:"user"`
}

// UserProfile is the subset of the account exposed to consuming clients.
type UserProfile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name,omitempty"`
	Roles       []string `json:"roles"`
}

/*
ExchangeToken redeems an authorization code for a platform token pair.

Description: Steps run strictly in order: grant type, client authentication,
atomic code consumption, binding checks, PKCE verification, session creation.
Every code or PKCE failure collapses into the same invalid-grant message; the
logs carry the distinction, the caller does not.

Parameters:
  - context: context.Context
  - input: ExchangeTokenInput

Returns:
  - *TokenResponse: Token pair, profile and roles
  - err: INVALID_GRANT, INVALID_CLIENT, or storage errors
*/
func (service *Service) ExchangeToken(context context.Context, input ExchangeTokenInput) (*TokenResponse, error) {
	logger := ctxutil.GetLogger(context)

	// 1. Only the authorization-code grant exists here.
	if input.GrantType != grantAuthorizationCode {
		return nil, apperr.ValidationError("Unsupported grant type", apperr.FieldError{Field: "grant_type", Message: "only authorization_code is supported"})
	}

	// 2. Authenticate the client. Public clients omit the secret.
	registered, err := service.clients.ValidateClient(context, input.ClientID, input.ClientSecret)
	if err != nil {
		return nil, err
	}

	// 3. Consume the code. Single atomic step; exactly one concurrent
	// caller gets the record.
	record, err := service.codes.ConsumeCode(context, input.Code)
	if err != nil {
		logger.WarnContext(context, "authorization_code_consume_failed",
			slog.String("client_id", input.ClientID),
			slog.Any("error", err),
		)
		return nil, apperr.InvalidGrant("Authorization code is invalid or expired")
	}

	// 4. The code is bound to one client and one redirect URI. A mismatch
	// fails even though the code itself was valid; the code is already
	// burned at this point, which is the safe direction.
	if record.ClientID != input.ClientID || record.RedirectURI != input.RedirectURI {
		logger.WarnContext(context, "authorization_code_binding_mismatch",
			slog.String("client_id", input.ClientID),
		)
		return nil, apperr.InvalidGrant("Authorization code is invalid or expired")
	}

	// 5. PKCE. A code minted with a challenge demands a verifier.
	if record.CodeChallenge != "" {
		if !verifyPKCE(record.CodeChallenge, record.CodeChallengeMethod, input.CodeVerifier) {
			logger.WarnContext(context, "pkce_verification_failed",
				slog.String("client_id", input.ClientID),
			)
			return nil, apperr.InvalidGrant("Authorization code is invalid or expired")
		}
	}

	// 6. Mint the session. The client display name rides in the access
	// token; a fresh token family starts per exchange.
	account, err := service.users.FindByID(context, record.UserID)
	if err != nil {
		return nil, apperr.InvalidGrant("Authorization code is invalid or expired")
	}
	pair, err := service.sessions.CreateClientSession(context, account.ID, registered.Name, session.DeviceMetadata{
		UserAgent: input.UserAgent,
		IP:        input.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	activeRoles, err := service.roles.ListActive(context, account.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to resolve roles", err)
	}

	service.audit.Log(context, audit.Entry{
		ActorUserID: account.ID,
		Action:      audit.ActionSSOCodeExchanged,
		EntityType:  "sso_client",
		EntityID:    input.ClientID,
		IP:          input.IPAddress,
		UserAgent:   input.UserAgent,
	})

	return &TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		User: &UserProfile{
			ID:          account.ID,
			Email:       account.Email,
			DisplayName: account.DisplayName,
			Roles:       sec.ApplyUnassignedRolePolicy(activeRoles),
		},
	}, nil
}

// # Helpers

// verifyPKCE checks a code verifier against the stored challenge.
func verifyPKCE(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}
	switch method {
	case pkceMethodPlain:
		return sec.ConstantTimeEquals(challenge, verifier)
	case pkceMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		derived := base64.RawURLEncoding.EncodeToString(sum[:])
		return sec.ConstantTimeEquals(challenge, derived)
	}
	return false
}

// appendQuery adds code and state to the redirect URI, preserving any query
// parameters the client registered.
func appendQuery(redirectURI, code, state string) (string, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return "", apperr.InvalidRedirectURI()
	}
	query := parsed.Query()
	query.Set("code", code)
	if state != "" {
		query.Set("state", state)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

