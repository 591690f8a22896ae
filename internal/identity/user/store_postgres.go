// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentgrid/identity/internal/platform/apperr"
	"github.com/talentgrid/identity/internal/platform/sec"
)

// # Account Repository

// PostgresRepository implements the Repository interface using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL implementation of the Repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const accountColumns = `
	id, email, passwordhash, displayname, googleuserid, supabaseuserid,
	mustchangepassword, globallogoutat, createdat, updatedat`

// scanAccount hydrates a [User] from a row carrying accountColumns.
func scanAccount(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.GoogleUserID,
		&user.SupabaseUserID,
		&user.MustChangePassword,
		&user.GlobalLogoutAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

/*
Create persists a new account record into the identity.account table.

Description: Deep-persists account metadata, ensuring timestamps are initialized
if not provided. A unique violation (email or external id) surfaces as
[ErrDuplicate] so federation bridges can recover from concurrent signups.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: ErrDuplicate, or connectivity errors
*/
func (repository *PostgresRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO identity.account (
			id, email, passwordhash, displayname, googleuserid, supabaseuserid,
			mustchangepassword, globallogoutat, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.GoogleUserID,
		user.SupabaseUserID,
		user.MustChangePassword,
		user.GlobalLogoutAt,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves an account by its unique ID.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresRepository) FindByID(context context.Context, id string) (*User, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM identity.account
		WHERE id = $1 AND deletedat IS NULL`

	user, err := scanAccount(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err)
	}

	return user, nil
}

/*
FindByEmail retrieves a non-deleted account by its unique email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) FindByEmail(context context.Context, email string) (*User, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM identity.account
		WHERE email = $1 AND deletedat IS NULL`

	user, err := scanAccount(repository.pool.QueryRow(context, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_email_failed: %w", err)
	}

	return user, nil
}

/*
FindByExternalID retrieves the account linked to an external identity id.

Parameters:
  - context: context.Context
  - provider: Provider (google | supabase)
  - externalID: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) FindByExternalID(context context.Context, provider Provider, externalID string) (*User, error) {
	column, err := externalIDColumn(provider)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + accountColumns + `
		FROM identity.account
		WHERE ` + column + ` = $1 AND deletedat IS NULL`

	user, err := scanAccount(repository.pool.QueryRow(context, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_external_id_failed: %w", err)
	}

	return user, nil
}

/*
Update persists changes to mutable account fields.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: Update failures
*/
func (repository *PostgresRepository) Update(context context.Context, user *User) error {
	const query = `
		UPDATE identity.account
		SET email = $2, passwordhash = $3, displayname = $4,
		    mustchangepassword = $5, updatedat = $6
		WHERE id = $1 AND deletedat IS NULL`

	user.UpdatedAt = time.Now()
	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.MustChangePassword,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("postgres_user_repo_update_failed: %w", err)
	}

	return nil
}

/*
LinkExternalID attaches a provider identity to an existing account.

Parameters:
  - context: context.Context
  - userID: string
  - provider: Provider
  - externalID: string

Returns:
  - error: ErrDuplicate if the provider id is linked elsewhere, or execution errors
*/
func (repository *PostgresRepository) LinkExternalID(context context.Context, userID string, provider Provider, externalID string) error {
	column, err := externalIDColumn(provider)
	if err != nil {
		return err
	}

	query := `
		UPDATE identity.account
		SET ` + column + ` = $2, updatedat = $3
		WHERE id = $1 AND deletedat IS NULL`

	_, err = repository.pool.Exec(context, query, userID, externalID, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("postgres_user_repo_link_external_id_failed: %w", err)
	}

	return nil
}

/*
SetGlobalLogoutAt stamps the account's global-logout instant.

Description: Every access token issued before 'at' becomes invalid at the
request-authentication layer, regardless of its own expiry.

Parameters:
  - context: context.Context
  - userID: string
  - at: time.Time

Returns:
  - error: Execution errors
*/
func (repository *PostgresRepository) SetGlobalLogoutAt(context context.Context, userID string, at time.Time) error {
	const query = `
		UPDATE identity.account
		SET globallogoutat = $2, updatedat = $2
		WHERE id = $1 AND deletedat IS NULL`

	_, err := repository.pool.Exec(context, query, userID, at)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_set_global_logout_failed: %w", err)
	}

	return nil
}

/*
GlobalLogoutAt resolves only the global-logout stamp for a user.

Description: Hot-path lookup used by request authentication. A missing row or
a NULL stamp both report found=false.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int64: Stamp as unix seconds
  - bool: Whether a stamp exists
  - error: Execution errors
*/
func (repository *PostgresRepository) GlobalLogoutAt(context context.Context, userID string) (int64, bool, error) {
	const query = `
		SELECT globallogoutat
		FROM identity.account
		WHERE id = $1 AND deletedat IS NULL`

	var stamp *time.Time
	err := repository.pool.QueryRow(context, query, userID).Scan(&stamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("postgres_user_repo_global_logout_at_failed: %w", err)
	}

	if stamp == nil {
		return 0, false, nil
	}
	return stamp.Unix(), true, nil
}

// externalIDColumn maps a provider onto its linkage column.
// The column name is compile-time constant per provider, never user input.
func externalIDColumn(provider Provider) (string, error) {
	switch provider {
	case ProviderGoogle:
		return "googleuserid", nil
	case ProviderSupabase:
		return "supabaseuserid", nil
	default:
		return "", fmt.Errorf("user: unknown provider %q", provider)
	}
}

// isUniqueViolation reports whether err is a Postgres unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgError *pgconn.PgError
	return errors.As(err, &pgError) && pgError.Code == pgerrcode.UniqueViolation
}

// # Role Repository

// PostgresRoleRepository implements RoleRepository using pgx.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new PostgreSQL implementation of RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

/*
ListActive returns the unexpired role grants for an account.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []sec.Role: Active grants (possibly empty — see sec.ApplyUnassignedRolePolicy)
  - error: Execution errors
*/
func (repository *PostgresRoleRepository) ListActive(context context.Context, userID string) ([]sec.Role, error) {
	const query = `
		SELECT roletype, scope, COALESCE(scopeentityid, ''), expiresat
		FROM identity.role
		WHERE userid = $1 AND (expiresat IS NULL OR expiresat > NOW())`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_role_repo_list_active_failed: %w", err)
	}
	defer rows.Close()

	var roles []sec.Role
	for rows.Next() {
		var role sec.Role
		if err := rows.Scan(&role.Type, &role.Scope, &role.ScopeEntityID, &role.ExpiresAt); err != nil {
			return nil, fmt.Errorf("postgres_role_repo_scan_failed: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_role_repo_rows_failed: %w", err)
	}

	return roles, nil
}
