// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package session

import (
	"context"
	"time"
)

// Store persists refresh sessions.
type Store interface {

	// Create inserts a new session.
	Create(context context.Context, session *Session) error

	// FindActive returns the non-revoked, non-expired session matching the
	// user, token hash and family, or nil when no such session exists.
	FindActive(context context.Context, userID, tokenHash, tokenFamily string) (*Session, error)

	// Rotate atomically replaces the stored token hash, guarded by the old
	// hash. It reports false when another rotation already consumed the old
	// hash, which the caller must treat as a lost race, not as replay.
	Rotate(context context.Context, sessionID, oldTokenHash, newTokenHash string, device DeviceMetadata, expiresAt, lastActivityAt time.Time) (bool, error)

	// Revoke marks one session revoked.
	Revoke(context context.Context, sessionID string) error

	// RevokeByTokenHash revokes the session holding the given hash and
	// returns it, or nil when no active session holds the hash.
	RevokeByTokenHash(context context.Context, userID, tokenHash string) (*Session, error)

	// RevokeFamily revokes every session in a token family and returns the
	// number of sessions revoked.
	RevokeFamily(context context.Context, tokenFamily string) (int64, error)

	// RevokeAllForUser revokes every active session of a user and returns
	// the number of sessions revoked.
	RevokeAllForUser(context context.Context, userID string) (int64, error)

	// DeleteExpired removes sessions past their expiry and returns the
	// number of rows deleted.
	DeleteExpired(context context.Context, olderThan time.Time) (int64, error)
}
