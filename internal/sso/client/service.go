// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package client

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/talentgrid/identity/internal/identity/audit"
	"github.com/talentgrid/identity/internal/platform/apperr"
	"github.com/talentgrid/identity/internal/platform/constants"
	"github.com/talentgrid/identity/internal/platform/sec"
	"github.com/talentgrid/identity/pkg/uuid"
)

// Service implements client registry use cases.
type Service struct {
	store Store

	// logoutURIDomainAllowlist holds the apex domains a logout URI host
	// must equal or be a subdomain of.
	logoutURIDomainAllowlist []string

	auditSink audit.Sink
}

// NewService constructs a client registry [Service].
func NewService(store Store, logoutURIDomainAllowlist []string, auditSink audit.Sink) *Service {
	return &Service{
		store:                    store,
		logoutURIDomainAllowlist: logoutURIDomainAllowlist,
		auditSink:                auditSink,
	}
}

// # Registration & Maintenance

// CreateInput holds the fields of a new client registration.
type CreateInput struct {
	Name          string
	RedirectURIs  []TaggedURI
	LogoutURIs    []TaggedURI
	DefaultIntent Intent
	AllowedScopes []string
	ActorUserID   string
}

/*
Create registers a new client application.

Description: The public client id and the secret are generated server-side;
the secret is returned exactly once in the creation response. Submitted URIs
pass sanitization, and logout URIs additionally pass the HTTPS + allowlist
policy.

Parameters:
  - context: context.Context
  - input: CreateInput

Returns:
  - *Client: The created client, secret populated
  - err: Validation, InvalidLogoutURI, or storage errors
*/
func (service *Service) Create(context context.Context, input CreateInput) (*Client, error) {
	redirectURIs := sanitizeTaggedURIs(input.RedirectURIs)
	logoutURIs := sanitizeTaggedURIs(input.LogoutURIs)
	for _, logoutURI := range logoutURIs {
		if err := service.validateSingleLogoutURI(logoutURI.URI); err != nil {
			return nil, err
		}
	}

	secret, err := sec.GenerateSecureToken(constants.SecureTokenLength)
	if err != nil {
		return nil, apperr.Internal("Failed to create client", err)
	}
	clientID, err := sec.GenerateSecureToken(16)
	if err != nil {
		return nil, apperr.Internal("Failed to create client", err)
	}

	intent := input.DefaultIntent
	if intent == "" {
		intent = IntentBoth
	}

	now := time.Now()
	newClient := &Client{
		ID:            uuid.New(),
		ClientID:      clientID,
		ClientSecret:  secret,
		Name:          input.Name,
		RedirectURIs:  redirectURIs,
		LogoutURIs:    logoutURIs,
		DefaultIntent: intent,
		IsActive:      true,
		AllowedScopes: input.AllowedScopes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := service.store.Create(context, newClient); err != nil {
		return nil, apperr.Internal("Failed to create client", err)
	}

	service.auditSink.Log(context, audit.Entry{
		ActorUserID: input.ActorUserID,
		Action:      audit.ActionClientCreated,
		EntityType:  "sso_client",
		EntityID:    newClient.ClientID,
		Changes:     map[string]any{"name": newClient.Name},
	})
	return newClient, nil
}

// UpdateInput holds the mutable fields of a client. Nil slices leave the
// stored list untouched.
type UpdateInput struct {
	Name          *string
	RedirectURIs  []TaggedURI
	LogoutURIs    []TaggedURI
	DefaultIntent *Intent
	AllowedScopes []string
	ActorUserID   string
}

/*
Update modifies a registered client.

Description: Submitted URI lists are defensively re-validated entry by entry;
malformed entries are silently discarded rather than persisted. If every
submitted entry was invalid the previous list is kept, so a bad update can
never wipe a client's URIs and brick its login flow.

Parameters:
  - context: context.Context
  - clientID: Public client id
  - input: UpdateInput

Returns:
  - *Client: The updated client
  - err: NotFound, InvalidLogoutURI, or storage errors
*/
func (service *Service) Update(context context.Context, clientID string, input UpdateInput) (*Client, error) {
	existing, err := service.store.FindByClientID(context, clientID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		existing.Name = *input.Name
	}
	if input.DefaultIntent != nil {
		existing.DefaultIntent = *input.DefaultIntent
	}
	if input.AllowedScopes != nil {
		existing.AllowedScopes = input.AllowedScopes
	}

	if input.RedirectURIs != nil {
		if sanitized := sanitizeTaggedURIs(input.RedirectURIs); len(sanitized) > 0 {
			existing.RedirectURIs = sanitized
		}
	}
	if input.LogoutURIs != nil {
		if sanitized := sanitizeTaggedURIs(input.LogoutURIs); len(sanitized) > 0 {
			for _, logoutURI := range sanitized {
				if err := service.validateSingleLogoutURI(logoutURI.URI); err != nil {
					return nil, err
				}
			}
			existing.LogoutURIs = sanitized
		}
	}

	existing.UpdatedAt = time.Now()
	if err := service.store.Update(context, existing); err != nil {
		return nil, apperr.Internal("Failed to update client", err)
	}

	service.auditSink.Log(context, audit.Entry{
		ActorUserID: input.ActorUserID,
		Action:      audit.ActionClientUpdated,
		EntityType:  "sso_client",
		EntityID:    clientID,
	})
	return existing, nil
}

// SetActive toggles a client's active flag.
func (service *Service) SetActive(context context.Context, clientID string, active bool, actorUserID string) error {
	if err := service.store.SetActive(context, clientID, active); err != nil {
		return err
	}
	if !active {
		service.auditSink.Log(context, audit.Entry{
			ActorUserID: actorUserID,
			Action:      audit.ActionClientDeactivated,
			EntityType:  "sso_client",
			EntityID:    clientID,
		})
	}
	return nil
}

// Delete soft-deletes a client. Lookups stop returning it immediately.
func (service *Service) Delete(context context.Context, clientID string, actorUserID string) error {
	if err := service.store.SoftDelete(context, clientID); err != nil {
		return err
	}
	service.auditSink.Log(context, audit.Entry{
		ActorUserID: actorUserID,
		Action:      audit.ActionClientDeactivated,
		EntityType:  "sso_client",
		EntityID:    clientID,
		Changes:     map[string]any{"deleted": true},
	})
	return nil
}

// List returns all registered clients.
func (service *Service) List(context context.Context) ([]*Client, error) {
	return service.store.List(context)
}

// Find returns one registered client by public id.
func (service *Service) Find(context context.Context, clientID string) (*Client, error) {
	return service.store.FindByClientID(context, clientID)
}

// # Authorization-Flow Lookups

/*
ValidateClient authenticates a calling application.

Description: Only an active, non-deleted client passes. The secret comparison
is constant-time; an unknown client id and a wrong secret are
indistinguishable to the caller.

Parameters:
  - context: context.Context
  - clientID: Public client id
  - clientSecret: Submitted secret; empty allowed for public clients

Returns:
  - *Client: The authenticated client
  - err: INVALID_CLIENT on any failure
*/
func (service *Service) ValidateClient(context context.Context, clientID, clientSecret string) (*Client, error) {
	found, err := service.store.FindByClientID(context, clientID)
	if err != nil || !found.IsActive {
		return nil, apperr.InvalidClient()
	}
	if clientSecret != "" && !sec.ConstantTimeEquals(found.ClientSecret, clientSecret) {
		return nil, apperr.InvalidClient()
	}
	return found, nil
}

// ValidateRedirectURI reports whether uri is byte-equal to one of the
// client's registered redirect URIs.
func (service *Service) ValidateRedirectURI(c *Client, uri string) bool {
	return c.HasRedirectURI(uri)
}

/*
FindByIntentAndEnvironment picks the client and redirect URI backing a
marketing-entry redirect.

Description: A client whose default intent exactly equals the requested
intent beats one tagged "both". Within the chosen client, a redirect URI
tagged with the requested environment wins; among those, a preview/staging
looking host is preferred before falling back to the first registered URI.

Parameters:
  - context: context.Context
  - intent: The user population being routed
  - environment: Requesting deployment

Returns:
  - *Client: The selected client
  - string: The selected redirect URI
  - err: NotFound when no active client serves the intent
*/
func (service *Service) FindByIntentAndEnvironment(context context.Context, intent Intent, environment Environment) (*Client, string, error) {
	clients, err := service.store.List(context)
	if err != nil {
		return nil, "", err
	}

	var exact, fallback *Client
	for _, candidate := range clients {
		if !candidate.IsActive || len(candidate.RedirectURIs) == 0 {
			continue
		}
		switch candidate.DefaultIntent {
		case intent:
			if exact == nil {
				exact = candidate
			}
		case IntentBoth:
			if fallback == nil {
				fallback = candidate
			}
		}
	}

	selected := exact
	if selected == nil {
		selected = fallback
	}
	if selected == nil {
		return nil, "", apperr.NotFound("Client")
	}

	return selected, pickRedirectURI(selected.RedirectURIs, environment), nil
}

// pickRedirectURI ranks a client's redirect URIs for one environment.
// Among environment matches, a dedicated preview host outranks a merely
// staging-named one; no environment match falls back to the first URI.
func pickRedirectURI(uris []TaggedURI, environment Environment) string {
	var selected string
	selectedRank := -1
	for _, tagged := range uris {
		if tagged.Environment != environment {
			continue
		}
		if rank := previewHostRank(tagged.URI); rank > selectedRank {
			selected = tagged.URI
			selectedRank = rank
		}
	}
	if selected != "" {
		return selected
	}
	return uris[0].URI
}

// previewHostRank scores how strongly a URI host signals an ephemeral
// deployment.
func previewHostRank(rawURI string) int {
	parsed, err := url.Parse(rawURI)
	if err != nil {
		return 0
	}
	host := parsed.Hostname()
	switch {
	case strings.Contains(host, "preview"):
		return 2
	case strings.Contains(host, "staging"):
		return 1
	}
	return 0
}

// # Logout URI Policy

/*
validateSingleLogoutURI enforces the front-channel logout URI policy.

Description: The URI must be https (localhost is exempt for development), its
host must equal or be a subdomain of an allowlisted apex domain, and its path
must be rooted. An attacker-registered logout URI would otherwise be loaded
in an iframe during front-channel logout.

Parameters:
  - rawURI: The candidate logout URI

Returns:
  - err: INVALID_LOGOUT_URI describing the first violated rule
*/
func (service *Service) validateSingleLogoutURI(rawURI string) error {
	parsed, err := url.Parse(rawURI)
	if err != nil || parsed.Host == "" {
		return apperr.InvalidLogoutURI("Logout URI must be an absolute URL")
	}

	host := parsed.Hostname()
	isLocalhost := host == "localhost" || host == "127.0.0.1"

	if parsed.Scheme != "https" && !isLocalhost {
		return apperr.InvalidLogoutURI("Logout URI must use https")
	}
	if parsed.Path != "" && !strings.HasPrefix(parsed.Path, "/") {
		return apperr.InvalidLogoutURI("Logout URI path must start with /")
	}

	if isLocalhost {
		return nil
	}
	for _, allowed := range service.logoutURIDomainAllowlist {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return apperr.InvalidLogoutURI("Logout URI domain is not allowlisted")
}

// sanitizeTaggedURIs drops malformed entries: empty URIs, unparseable URIs,
// and unknown environment tags.
func sanitizeTaggedURIs(uris []TaggedURI) []TaggedURI {
	sanitized := make([]TaggedURI, 0, len(uris))
	for _, tagged := range uris {
		trimmed := strings.TrimSpace(tagged.URI)
		if trimmed == "" || !KnownEnvironment(tagged.Environment) {
			continue
		}
		if parsed, err := url.Parse(trimmed); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			continue
		}
		sanitized = append(sanitized, TaggedURI{URI: trimmed, Environment: tagged.Environment})
	}
	return sanitized
}
