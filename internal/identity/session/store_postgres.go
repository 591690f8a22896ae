// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL implementation of the Store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `
	id, userid, tokenhash, tokenfamily, useragent, ipaddress, fingerprint,
	environment, revoked, lastactivityat, expiresat, createdat`

// scanSession hydrates a [Session] from a row carrying sessionColumns.
func scanSession(row pgx.Row) (*Session, error) {
	s := &Session{}
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TokenHash,
		&s.TokenFamily,
		&s.Device.UserAgent,
		&s.Device.IP,
		&s.Device.Fingerprint,
		&s.Environment,
		&s.Revoked,
		&s.LastActivityAt,
		&s.ExpiresAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

/*
Create persists a new session record into the identity.session table.

Parameters:
  - context: context.Context
  - session: The session entity to insert

Returns:
  - err: Wrapped storage errors
*/
func (store *PostgresStore) Create(context context.Context, session *Session) error {
	query := `
		INSERT INTO identity.session (
			id, userid, tokenhash, tokenfamily, useragent, ipaddress,
			fingerprint, environment, revoked, lastactivityat, expiresat, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := store.pool.Exec(context, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.TokenFamily,
		session.Device.UserAgent,
		session.Device.IP,
		session.Device.Fingerprint,
		session.Environment,
		session.Revoked,
		session.LastActivityAt,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_session_store_create_failed: %w", err)
	}
	return nil
}

/*
FindActive fetches the live session holding the given token hash.

Description: The lookup keys on user, hash and family together so a token can
never resolve to a session outside its own lineage. Revoked and expired rows
are invisible here on purpose: their absence is what the rotation state
machine reads as replay.

Parameters:
  - context: context.Context
  - userID: Account id from the token subject
  - tokenHash: SHA-256 hash of the presented refresh token
  - tokenFamily: Family id from the token claims

Returns:
  - *Session: The matching session, or nil when none is active
  - err: Wrapped storage errors
*/
func (store *PostgresStore) FindActive(context context.Context, userID, tokenHash, tokenFamily string) (*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM identity.session
		WHERE userid = $1 AND tokenhash = $2 AND tokenfamily = $3
		  AND revoked = FALSE`

	session, err := scanSession(store.pool.QueryRow(context, query, userID, tokenHash, tokenFamily))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_session_store_find_active_failed: %w", err)
	}
	return session, nil
}

/*
Rotate atomically swaps the stored token hash, guarded by the old hash.

Description: The WHERE clause on the old hash makes concurrent rotations of
the same token race on a single row update. Exactly one wins; the others see
zero rows affected and report false.

Parameters:
  - context: context.Context
  - sessionID: The session being rotated
  - oldTokenHash: Hash the update is guarded on
  - newTokenHash: Replacement hash
  - device: Device metadata captured at refresh
  - expiresAt: New sliding expiry
  - lastActivityAt: Refresh timestamp

Returns:
  - bool: Whether this call won the rotation
  - err: Wrapped storage errors
*/
func (store *PostgresStore) Rotate(context context.Context, sessionID, oldTokenHash, newTokenHash string, device DeviceMetadata, expiresAt, lastActivityAt time.Time) (bool, error) {
	query := `
		UPDATE identity.session
		SET tokenhash = $1, useragent = $2, ipaddress = $3, fingerprint = $4,
		    expiresat = $5, lastactivityat = $6
		WHERE id = $7 AND tokenhash = $8 AND revoked = FALSE`

	tag, err := store.pool.Exec(context, query,
		newTokenHash,
		device.UserAgent,
		device.IP,
		device.Fingerprint,
		expiresAt,
		lastActivityAt,
		sessionID,
		oldTokenHash,
	)
	if err != nil {
		return false, fmt.Errorf("postgres_session_store_rotate_failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Revoke marks one session revoked. Revoking an already-revoked session is a
// no-op, not an error.
func (store *PostgresStore) Revoke(context context.Context, sessionID string) error {
	query := `UPDATE identity.session SET revoked = TRUE WHERE id = $1`

	if _, err := store.pool.Exec(context, query, sessionID); err != nil {
		return fmt.Errorf("postgres_session_store_revoke_failed: %w", err)
	}
	return nil
}

/*
RevokeByTokenHash revokes the active session holding the given hash.

Parameters:
  - context: context.Context
  - userID: Account id from the token subject
  - tokenHash: SHA-256 hash of the presented refresh token

Returns:
  - *Session: The revoked session, or nil when no active session matched
  - err: Wrapped storage errors
*/
func (store *PostgresStore) RevokeByTokenHash(context context.Context, userID, tokenHash string) (*Session, error) {
	query := `
		UPDATE identity.session
		SET revoked = TRUE
		WHERE userid = $1 AND tokenhash = $2 AND revoked = FALSE
		RETURNING ` + sessionColumns

	session, err := scanSession(store.pool.QueryRow(context, query, userID, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_session_store_revoke_by_hash_failed: %w", err)
	}
	return session, nil
}

// RevokeFamily revokes every session in a token family.
func (store *PostgresStore) RevokeFamily(context context.Context, tokenFamily string) (int64, error) {
	query := `UPDATE identity.session SET revoked = TRUE WHERE tokenfamily = $1 AND revoked = FALSE`

	tag, err := store.pool.Exec(context, query, tokenFamily)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_store_revoke_family_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RevokeAllForUser revokes every active session of a user.
func (store *PostgresStore) RevokeAllForUser(context context.Context, userID string) (int64, error) {
	query := `UPDATE identity.session SET revoked = TRUE WHERE userid = $1 AND revoked = FALSE`

	tag, err := store.pool.Exec(context, query, userID)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_store_revoke_all_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes sessions past their expiry. Run by the background
// sweeper; revocation checks never depend on it.
func (store *PostgresStore) DeleteExpired(context context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM identity.session WHERE expiresat < $1`

	tag, err := store.pool.Exec(context, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_store_delete_expired_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
