// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

/*
Package user defines the platform account entity and its data access contract.

The identity core reads and writes accounts through the [Repository] interface;
profile CRUD, invitations, and organization membership live outside this
subsystem and are consumed only through this contract.

# Invariants

  - At most one non-deleted account per email address.
  - At most one account per external identity id (per provider).
*/
package user

import (
	"context"
	"errors"
	"time"

	"github.com/talentgrid/identity/internal/platform/sec"
)

// Provider identifies an external identity provider linked to an account.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderSupabase Provider = "supabase"
)

// ErrDuplicate is returned by [Repository.Create] when a unique constraint
// (email or external identity id) is violated. Federation bridges treat it as
// "someone else just created this account" and re-fetch instead of failing.
var ErrDuplicate = errors.New("user: duplicate account")

// # Domain Entities

// User represents a registered account on the TalentGrid platform.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	// PasswordHash is empty for federated-only accounts. Omitted from JSON.
	PasswordHash string `json:"-"`

	DisplayName string `json:"display_name"`

	// External identity linkages. Each is unique when present.
	GoogleUserID   *string `json:"-"`
	SupabaseUserID *string `json:"-"`

	// MustChangePassword forces a password rotation before any other action.
	MustChangePassword bool `json:"must_change_password"`

	// GlobalLogoutAt invalidates every access token issued before it.
	GlobalLogoutAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExternalID returns the linked id for the given provider, if any.
func (u *User) ExternalID(provider Provider) *string {
	switch provider {
	case ProviderGoogle:
		return u.GoogleUserID
	case ProviderSupabase:
		return u.SupabaseUserID
	default:
		return nil
	}
}

// # Data Access Contracts

// Repository defines the data access contract for platform accounts.
// All lookups exclude soft-deleted accounts.
type Repository interface {

	// FindByID returns the account with the given ID.
	FindByID(context context.Context, id string) (*User, error)

	// FindByEmail returns the non-deleted account with the given email.
	FindByEmail(context context.Context, email string) (*User, error)

	// FindByExternalID returns the account linked to the given provider id.
	FindByExternalID(context context.Context, provider Provider, externalID string) (*User, error)

	// Create persists a brand-new account. Returns [ErrDuplicate] when the
	// email or an external identity id is already taken.
	Create(context context.Context, user *User) error

	// Update persists changes to mutable account fields.
	Update(context context.Context, user *User) error

	// LinkExternalID attaches a provider identity to an existing account.
	// Returns [ErrDuplicate] when the provider id is linked elsewhere.
	LinkExternalID(context context.Context, userID string, provider Provider, externalID string) error

	// SetGlobalLogoutAt stamps the account's global-logout instant.
	SetGlobalLogoutAt(context context.Context, userID string, at time.Time) error

	// GlobalLogoutAt resolves only the global-logout stamp (hot path — called
	// by request authentication for every bearer token).
	GlobalLogoutAt(context context.Context, userID string) (unixSeconds int64, found bool, err error)
}

// RoleRepository defines read access to role grants.
//
// The core consumes roles exclusively to populate token claims; granting and
// revoking roles belongs to the organization subsystem.
type RoleRepository interface {

	// ListActive returns the unexpired role grants for the account.
	ListActive(context context.Context, userID string) ([]sec.Role, error)
}
