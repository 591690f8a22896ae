// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

/*
Package client implements the registry of first-party applications allowed to
obtain platform tokens through the single sign-on flow.

Redirect URIs are matched byte-for-byte against the registered list; there is
no pattern or prefix matching anywhere in this package. Logout URIs
additionally pass an HTTPS + domain-allowlist policy before being stored,
closing the front-channel-logout injection vector.
*/
package client

import "time"

// Environment tags a URI with the deployment it belongs to.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// KnownEnvironment reports whether the tag is one of the enumerated
// deployments.
func KnownEnvironment(environment Environment) bool {
	switch environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
		return true
	}
	return false
}

// Intent names the user population an application serves.
type Intent string

const (
	IntentClient    Intent = "client"
	IntentCandidate Intent = "candidate"
	IntentBoth      Intent = "both"
)

// TaggedURI is one registered URI with its deployment tag.
type TaggedURI struct {
	URI         string      `json:"uri"`
	Environment Environment `json:"environment"`
}

// Client is one registered application.
type Client struct {
	ID            string      `json:"id"`
	ClientID      string      `json:"client_id"`
	ClientSecret  string      `json:"-"`
	Name          string      `json:"name"`
	RedirectURIs  []TaggedURI `json:"redirect_uris"`
	LogoutURIs    []TaggedURI `json:"logout_uris"`
	DefaultIntent Intent      `json:"default_intent"`
	IsActive      bool        `json:"is_active"`
	AllowedScopes []string    `json:"allowed_scopes,omitempty"`
	DeletedAt     *time.Time  `json:"-"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// HasRedirectURI reports whether uri is byte-equal to a registered redirect
// URI.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered.URI == uri {
			return true
		}
	}
	return false
}
