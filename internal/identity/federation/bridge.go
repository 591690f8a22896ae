// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

/*
Package federation bridges external identity providers into platform sessions.

# Architecture

Each provider implements the [Bridge] contract: verify the provider's token,
return a normalized [ExternalIdentity]. The [Service] then runs the shared
find-or-create flow and opens a refresh session, so adding a provider is one
new Bridge implementation and a route.
*/
package federation

import (
	"context"

	"github.com/talentgrid/identity/internal/identity/user"
)

// ExternalIdentity is the normalized result of verifying a provider token.
type ExternalIdentity struct {
	Provider      user.Provider
	SubjectID     string
	Email         string
	EmailVerified bool
	DisplayName   string
}

// Bridge verifies one provider's tokens.
type Bridge interface {

	// Provider names the identity provider this bridge fronts.
	Provider() user.Provider

	// AutoVerifiesEmail reports whether the provider guarantees email
	// ownership out-of-band. Bridges returning true skip the
	// email-verified attestation check. This is an explicit, enumerated
	// exception per provider, never a default.
	AutoVerifiesEmail() bool

	// Verify checks the external token and returns the identity it
	// attests. Any verification failure must collapse into a single
	// generic error to the caller.
	Verify(context context.Context, externalToken string) (*ExternalIdentity, error)
}
