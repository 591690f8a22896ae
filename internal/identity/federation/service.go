// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package federation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/talentgrid/identity/internal/identity/audit"
	"github.com/talentgrid/identity/internal/identity/email"
	"github.com/talentgrid/identity/internal/identity/session"
	"github.com/talentgrid/identity/internal/identity/user"
	"github.com/talentgrid/identity/internal/platform/apperr"
	"github.com/talentgrid/identity/internal/platform/ctxutil"
	"github.com/talentgrid/identity/internal/platform/sec"
	"github.com/talentgrid/identity/pkg/uuid"
)

// # Contracts & Types

// SessionOpener is the slice of the session service the exchange flow needs.
type SessionOpener interface {
	CreateSession(context context.Context, userID string, device session.DeviceMetadata) (*session.TokenPair, error)
}

// ClientValidator authenticates an optional calling client application.
type ClientValidator interface {
	ValidateClient(context context.Context, clientID, clientSecret string) error
}

// Service runs the shared find-or-create exchange flow over any [Bridge].
type Service struct {
	bridges        map[user.Provider]Bridge
	userRepository user.Repository
	roleRepository user.RoleRepository
	sessions       SessionOpener
	clients        ClientValidator
	auditSink      audit.Sink
	emailSender    email.Sender
}

// NewService constructs a federation [Service] over the given bridges.
func NewService(
	bridges []Bridge,
	userRepo user.Repository,
	roleRepo user.RoleRepository,
	sessions SessionOpener,
	clients ClientValidator,
	auditSink audit.Sink,
	emailSender email.Sender,
) *Service {
	byProvider := make(map[user.Provider]Bridge, len(bridges))
	for _, bridge := range bridges {
		byProvider[bridge.Provider()] = bridge
	}
	return &Service{
		bridges:        byProvider,
		userRepository: userRepo,
		roleRepository: roleRepo,
		sessions:       sessions,
		clients:        clients,
		auditSink:      auditSink,
		emailSender:    emailSender,
	}
}

// ExchangeInput holds a provider token plus optional client credentials.
type ExchangeInput struct {
	Provider      user.Provider
	ExternalToken string
	ClientID      string
	ClientSecret  string
	UserAgent     string
	IPAddress     string
}

// ExchangeResult is the platform session minted from an external identity.
type ExchangeResult struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	User         *user.User `json:"user"`
	Roles        []string   `json:"roles"`

	// IsNewUser is true for first-time signups and for accounts still
	// pending role selection. Callers route these to onboarding instead
	// of the default landing page.
	IsNewUser bool `json:"is_new_user"`
}

// # Exchange Flow

/*
Exchange verifies an external identity token and turns it into a platform
session, creating the user on first contact.

Description: The exchange is the single entry point for all federated logins.
Provider verification, the email-attestation policy, find-or-create with race
absorption, and session creation are identical across providers; only token
verification differs per bridge.

Parameters:
  - context: context.Context
  - input: ExchangeInput

Returns:
  - *ExchangeResult: Platform token pair, profile and roles
  - err: Unauthorized, EmailNotVerified, InvalidClient, or storage errors
*/
func (service *Service) Exchange(context context.Context, input ExchangeInput) (*ExchangeResult, error) {
	logger := ctxutil.GetLogger(context)

	bridge, ok := service.bridges[input.Provider]
	if !ok {
		return nil, apperr.NotFound("Identity provider")
	}

	// 1. Authenticate the calling client application when credentials are
	// supplied. Public first-party surfaces omit them.
	if input.ClientID != "" {
		if err := service.clients.ValidateClient(context, input.ClientID, input.ClientSecret); err != nil {
			return nil, err
		}
	}

	// 2. Verify the provider token.
	identity, err := bridge.Verify(context, input.ExternalToken)
	if err != nil {
		return nil, err
	}

	// 3. Email attestation policy. Providers that confirm ownership
	// out-of-band are enumerated exceptions via AutoVerifiesEmail.
	if !identity.EmailVerified && !bridge.AutoVerifiesEmail() {
		return nil, apperr.EmailNotVerified(string(identity.Provider))
	}

	// 4. Find-or-create the platform account.
	account, created, err := service.findOrCreateUser(context, identity)
	if err != nil {
		return nil, err
	}

	// 5. Resolve roles. An account with no active assignment is pending
	// role selection and is reported like a fresh signup.
	activeRoles, err := service.roleRepository.ListActive(context, account.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to resolve roles", err)
	}
	isNewUser := created || len(activeRoles) == 0

	// 6. Open the session.
	pair, err := service.sessions.CreateSession(context, account.ID, session.DeviceMetadata{
		UserAgent: input.UserAgent,
		IP:        input.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	action := audit.ActionFederatedLogin
	if created {
		action = audit.ActionFederatedSignup

		// Fire-and-forget: a failed welcome email never fails a login.
		if sendErr := service.emailSender.SendWelcome(context, account.Email, account.DisplayName); sendErr != nil {
			logger.WarnContext(context, "welcome_email_send_failed",
				slog.String("user_id", account.ID),
				slog.Any("error", sendErr),
			)
		}
	}
	service.auditSink.Log(context, audit.Entry{
		ActorUserID: account.ID,
		Action:      action,
		EntityType:  "user",
		EntityID:    account.ID,
		Changes:     map[string]any{"provider": string(identity.Provider), "is_new_user": isNewUser},
		IP:          input.IPAddress,
		UserAgent:   input.UserAgent,
	})

	return &ExchangeResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		User:         account,
		Roles:        sec.ApplyUnassignedRolePolicy(activeRoles),
		IsNewUser:    isNewUser,
	}, nil
}

/*
findOrCreateUser resolves the external identity to exactly one platform
account.

Description: Resolution order is provider id, then email, then create. Two
concurrent first logins race on the insert; the loser's uniqueness violation
is absorbed and converted into a re-fetch of the row the winner created.

Parameters:
  - context: context.Context
  - identity: The verified external identity

Returns:
  - *user.User: The resolved account
  - bool: Whether this call created the account
  - err: Conflict or storage errors
*/
func (service *Service) findOrCreateUser(context context.Context, identity *ExternalIdentity) (*user.User, bool, error) {

	// Fast path: the provider id is already linked.
	account, err := service.userRepository.FindByExternalID(context, identity.Provider, identity.SubjectID)
	if err == nil {
		return account, false, nil
	}
	if appErr := apperr.As(err); appErr == nil || appErr.Code != "NOT_FOUND" {
		return nil, false, err
	}

	// An existing account with the same email gets the provider linked.
	// A different subject already linked for this provider means the email
	// moved between provider accounts; that needs support, not a silent
	// re-link.
	account, err = service.userRepository.FindByEmail(context, identity.Email)
	if err == nil {
		if existing := account.ExternalID(identity.Provider); existing != nil && *existing != identity.SubjectID {
			return nil, false, apperr.Conflict("This email is already linked to a different " + string(identity.Provider) + " account")
		}
		if account.ExternalID(identity.Provider) == nil {
			if linkErr := service.userRepository.LinkExternalID(context, account.ID, identity.Provider, identity.SubjectID); linkErr != nil {
				return nil, false, linkErr
			}
		}
		return account, false, nil
	}
	if appErr := apperr.As(err); appErr == nil || appErr.Code != "NOT_FOUND" {
		return nil, false, err
	}

	// Create. A uniqueness violation means a concurrent request won the
	// insert; re-fetch what it created instead of failing.
	now := time.Now()
	newAccount := &user.User{
		ID:          uuid.New(),
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	subjectID := identity.SubjectID
	switch identity.Provider {
	case user.ProviderGoogle:
		newAccount.GoogleUserID = &subjectID
	case user.ProviderSupabase:
		newAccount.SupabaseUserID = &subjectID
	}

	if err := service.userRepository.Create(context, newAccount); err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			winner, fetchErr := service.userRepository.FindByExternalID(context, identity.Provider, identity.SubjectID)
			if fetchErr == nil {
				return winner, false, nil
			}
			winner, fetchErr = service.userRepository.FindByEmail(context, identity.Email)
			if fetchErr == nil {
				return winner, false, nil
			}
			return nil, false, fetchErr
		}
		return nil, false, apperr.Internal("Failed to create user", err)
	}
	return newAccount, true, nil
}
