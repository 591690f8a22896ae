// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package federation

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/talentgrid/identity/internal/identity/user"
	"github.com/talentgrid/identity/internal/platform/apperr"
)

// SupabaseBridge verifies Supabase access tokens (HS256 JWTs signed with the
// project's shared JWT secret).
type SupabaseBridge struct {
	jwtSecret []byte
}

// NewSupabaseBridge creates a bridge verifying tokens with the Supabase
// project JWT secret.
func NewSupabaseBridge(jwtSecret string) *SupabaseBridge {
	return &SupabaseBridge{jwtSecret: []byte(jwtSecret)}
}

// Provider implements [Bridge].
func (bridge *SupabaseBridge) Provider() user.Provider { return user.ProviderSupabase }

// AutoVerifiesEmail implements [Bridge]. Supabase only mints an access token
// after completing its own email confirmation flow, so email ownership is
// guaranteed out-of-band. This is the enumerated exception to the
// email_verified attestation requirement.
func (bridge *SupabaseBridge) AutoVerifiesEmail() bool { return true }

// supabaseClaims is the subset of Supabase access-token claims the bridge
// reads. Display name rides in the user_metadata blob.
type supabaseClaims struct {
	jwt.RegisteredClaims

	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
		Name     string `json:"name"`
	} `json:"user_metadata"`
}

/*
Verify checks a Supabase access token's signature and expiry, and extracts the
attested identity.

Parameters:
  - context: context.Context
  - externalToken: The raw Supabase access token

Returns:
  - *ExternalIdentity: The verified identity
  - err: A generic Unauthorized for any verification failure
*/
func (bridge *SupabaseBridge) Verify(context context.Context, externalToken string) (*ExternalIdentity, error) {
	claims := &supabaseClaims{}
	token, err := jwt.ParseWithClaims(externalToken, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Unauthorized("Invalid identity token")
		}
		return bridge.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Unauthorized("Invalid identity token").WithCause(err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, apperr.Unauthorized("Invalid identity token")
	}

	displayName := claims.UserMetadata.FullName
	if displayName == "" {
		displayName = claims.UserMetadata.Name
	}

	return &ExternalIdentity{
		Provider:      user.ProviderSupabase,
		SubjectID:     claims.Subject,
		Email:         claims.Email,
		EmailVerified: true,
		DisplayName:   displayName,
	}, nil
}
