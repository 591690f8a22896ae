// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package sec

import "time"

// # User Roles

// RoleType is the name of an authorization role granted to an account.
type RoleType string

const (
	// Unrestricted system access
	RoleAdmin RoleType = "admin"

	// Can manage an organization's postings, members, and candidate pipeline
	RoleClient RoleType = "client"

	// Can maintain a talent profile and apply to postings
	RoleCandidate RoleType = "candidate"

	// RoleBaseline is embedded when an account has no assigned role yet.
	RoleBaseline RoleType = "user"
)

// RoleScope describes the reach of a granted role.
type RoleScope string

const (
	ScopeGlobal       RoleScope = "global"
	ScopeOrganization RoleScope = "organization"
	ScopeIndividual   RoleScope = "individual"
	ScopeAll          RoleScope = "all"
)

// Role is one granted (type, scope) pair. The core consumes roles only to
// populate the roles claim of minted tokens; the permission matrix itself
// lives outside this subsystem.
type Role struct {
	Type          RoleType   `json:"type"`
	Scope         RoleScope  `json:"scope"`
	ScopeEntityID string     `json:"scope_entity_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the role grant is currently in effect.
func (r Role) Active(now time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

// # Unassigned Role Policy

// ApplyUnassignedRolePolicy converts granted roles into token claims.
//
// Accounts with no assigned role (e.g. freshly federated signups awaiting
// role selection) act as [RoleBaseline]. This is the single place that
// fallback lives; call sites must not default roles themselves.
func ApplyUnassignedRolePolicy(roles []Role) []string {
	now := time.Now()
	claims := make([]string, 0, len(roles))
	for _, role := range roles {
		if role.Active(now) {
			claims = append(claims, string(role.Type))
		}
	}

	if len(claims) == 0 {
		return []string{string(RoleBaseline)}
	}
	return claims
}
