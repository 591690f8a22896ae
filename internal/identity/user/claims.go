// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package user

import (
	"context"

	"github.com/talentgrid/identity/internal/platform/apperr"
	"github.com/talentgrid/identity/internal/platform/sec"
)

// ClaimsResolver joins an account with its active role assignments to build
// the payload embedded in access tokens.
type ClaimsResolver struct {
	users Repository
	roles RoleRepository
}

// NewClaimsResolver creates a resolver over the given repositories.
func NewClaimsResolver(users Repository, roles RoleRepository) *ClaimsResolver {
	return &ClaimsResolver{users: users, roles: roles}
}

/*
AccessTokenInput resolves the account attributes embedded in access tokens.

Description: Roles are filtered to active assignments at resolution time, so
an expired role disappears from tokens at the next refresh without any
explicit revocation. Accounts with no active assignment receive the baseline
role instead of an empty claim.

Parameters:
  - context: context.Context
  - userID: The account id

Returns:
  - sec.AccessTokenInput: Claims payload for the token signer
  - err: NotFound or storage errors
*/
func (resolver *ClaimsResolver) AccessTokenInput(context context.Context, userID string) (sec.AccessTokenInput, error) {
	account, err := resolver.users.FindByID(context, userID)
	if err != nil {
		return sec.AccessTokenInput{}, err
	}

	activeRoles, err := resolver.roles.ListActive(context, userID)
	if err != nil {
		return sec.AccessTokenInput{}, apperr.Internal("Failed to resolve roles", err)
	}

	return sec.AccessTokenInput{
		UserID:             account.ID,
		Email:              account.Email,
		Roles:              sec.ApplyUnassignedRolePolicy(activeRoles),
		MustChangePassword: account.MustChangePassword,
	}, nil
}
