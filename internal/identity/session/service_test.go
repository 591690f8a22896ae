// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

// In-package tests: the inactivity and expiry cases drive the service's
// unexported clock instead of sleeping.
package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgrid/identity/internal/identity/audit"
	"github.com/talentgrid/identity/internal/platform/apperr"
	"github.com/talentgrid/identity/internal/platform/constants"
	"github.com/talentgrid/identity/internal/platform/sec"
)

// # Test Fixtures

// memStore is an in-memory Store used to exercise the rotation state machine
// without a database.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*Session)}
}

func (store *memStore) Create(_ context.Context, session *Session) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	clone := *session
	store.sessions[session.ID] = &clone
	return nil
}

func (store *memStore) FindActive(_ context.Context, userID, tokenHash, tokenFamily string) (*Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, s := range store.sessions {
		if s.UserID == userID && s.TokenHash == tokenHash && s.TokenFamily == tokenFamily && !s.Revoked {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (store *memStore) Rotate(_ context.Context, sessionID, oldTokenHash, newTokenHash string, device DeviceMetadata, expiresAt, lastActivityAt time.Time) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	s, ok := store.sessions[sessionID]
	if !ok || s.Revoked || s.TokenHash != oldTokenHash {
		return false, nil
	}
	s.TokenHash = newTokenHash
	s.Device = device
	s.ExpiresAt = expiresAt
	s.LastActivityAt = lastActivityAt
	return true, nil
}

func (store *memStore) Revoke(_ context.Context, sessionID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if s, ok := store.sessions[sessionID]; ok {
		s.Revoked = true
	}
	return nil
}

func (store *memStore) RevokeByTokenHash(_ context.Context, userID, tokenHash string) (*Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, s := range store.sessions {
		if s.UserID == userID && s.TokenHash == tokenHash && !s.Revoked {
			s.Revoked = true
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (store *memStore) RevokeFamily(_ context.Context, tokenFamily string) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var count int64
	for _, s := range store.sessions {
		if s.TokenFamily == tokenFamily && !s.Revoked {
			s.Revoked = true
			count++
		}
	}
	return count, nil
}

func (store *memStore) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var count int64
	for _, s := range store.sessions {
		if s.UserID == userID && !s.Revoked {
			s.Revoked = true
			count++
		}
	}
	return count, nil
}

func (store *memStore) DeleteExpired(_ context.Context, olderThan time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var count int64
	for id, s := range store.sessions {
		if s.ExpiresAt.Before(olderThan) {
			delete(store.sessions, id)
			count++
		}
	}
	return count, nil
}

func (store *memStore) activeCount() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	count := 0
	for _, s := range store.sessions {
		if !s.Revoked {
			count++
		}
	}
	return count
}

// staticClaims resolves every user to a fixed access-token input.
type staticClaims struct{}

func (staticClaims) AccessTokenInput(_ context.Context, userID string) (sec.AccessTokenInput, error) {
	return sec.AccessTokenInput{
		UserID: userID,
		Email:  "candidate@talentgrid.dev",
		Roles:  []string{"candidate"},
	}, nil
}

// stampRecorder captures global-logout watermarks.
type stampRecorder struct {
	mu      sync.Mutex
	stamped map[string]time.Time
}

func newStampRecorder() *stampRecorder {
	return &stampRecorder{stamped: make(map[string]time.Time)}
}

func (r *stampRecorder) SetGlobalLogoutAt(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stamped[userID] = at
	return nil
}

// auditRecorder captures emitted audit actions.
type auditRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *auditRecorder) Log(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *auditRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

type fixture struct {
	service *Service
	store   *memStore
	stamps  *stampRecorder
	audits  *auditRecorder
	tokens  *sec.TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens := sec.NewTokenService(
		"test-access-secret-test-access-secret",
		"test-refresh-secret-test-refresh-secret",
		"test-service-secret-test-service-secret",
		constants.AuthIssuer,
	)
	store := newMemStore()
	stamps := newStampRecorder()
	audits := &auditRecorder{}
	service := NewService(store, tokens, staticClaims{}, stamps, audits)
	return &fixture{service: service, store: store, stamps: stamps, audits: audits, tokens: tokens}
}

// # Tests

/*
TestService_CreateSession verifies that a login mints a valid token pair and
persists one session holding only the hash of the refresh token.
*/
func TestService_CreateSession(t *testing.T) {
	fx := newFixture(t)

	pair, err := fx.service.CreateSession(context.Background(), "user-1", DeviceMetadata{UserAgent: "go-test", IP: "203.0.113.7"})
	require.NoError(t, err)
	require.NotNil(t, pair)

	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(constants.AccessTokenTTL.Seconds()), pair.ExpiresIn)

	claims, err := fx.tokens.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.NotEmpty(t, claims.TokenFamily)

	require.Equal(t, 1, fx.store.activeCount())
	stored, err := fx.store.FindActive(context.Background(), "user-1", sec.HashToken(pair.RefreshToken), claims.TokenFamily)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotContains(t, stored.TokenHash, pair.RefreshToken)
}

/*
TestService_RotateRefreshToken_Success verifies that a rotation retires the
presented token, keeps the token family, and leaves exactly one live token.
*/
func TestService_RotateRefreshToken_Success(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	initial, err := fx.service.CreateSession(ctx, "user-1", DeviceMetadata{})
	require.NoError(t, err)
	initialClaims, err := fx.tokens.ValidateRefreshToken(initial.RefreshToken)
	require.NoError(t, err)

	rotated, err := fx.service.RotateRefreshToken(ctx, initial.RefreshToken, DeviceMetadata{IP: "203.0.113.9"})
	require.NoError(t, err)
	require.NotNil(t, rotated)
	assert.NotEqual(t, initial.RefreshToken, rotated.RefreshToken)

	// Rotation stays inside the same family.
	rotatedClaims, err := fx.tokens.ValidateRefreshToken(rotated.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, initialClaims.TokenFamily, rotatedClaims.TokenFamily)

	// Only the new hash is live.
	assert.Equal(t, 1, fx.store.activeCount())
	stale, err := fx.store.FindActive(ctx, "user-1", sec.HashToken(initial.RefreshToken), initialClaims.TokenFamily)
	require.NoError(t, err)
	assert.Nil(t, stale)
}

/*
TestService_RotateRefreshToken_ReuseRevokesFamily verifies replay detection:
presenting a superseded token revokes the entire token family, including the
currently live token.
*/
func TestService_RotateRefreshToken_ReuseRevokesFamily(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	initial, err := fx.service.CreateSession(ctx, "user-1", DeviceMetadata{})
	require.NoError(t, err)
	rotated, err := fx.service.RotateRefreshToken(ctx, initial.RefreshToken, DeviceMetadata{})
	require.NoError(t, err)

	// Replaying the retired token trips detection.
	_, err = fx.service.RotateRefreshToken(ctx, initial.RefreshToken, DeviceMetadata{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenReuse))
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "INVALID_GRANT", appErr.Code)

	// Blast radius: the legitimate holder's current token is dead too.
	assert.Equal(t, 0, fx.store.activeCount())
	_, err = fx.service.RotateRefreshToken(ctx, rotated.RefreshToken, DeviceMetadata{})
	require.Error(t, err)

	assert.Contains(t, fx.audits.actions(), audit.ActionTokenReuse)
}

/*
TestService_RotateRefreshToken_ForgedToken verifies that a token signed with
the wrong key fails closed with a generic invalid-grant response.
*/
func TestService_RotateRefreshToken_ForgedToken(t *testing.T) {
	fx := newFixture(t)
	forger := sec.NewTokenService("other-a", "other-r", "other-s", constants.AuthIssuer)
	forged, err := forger.IssueRefreshToken("user-1", "family-x")
	require.NoError(t, err)

	_, err = fx.service.RotateRefreshToken(context.Background(), forged, DeviceMetadata{})
	require.Error(t, err)
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "INVALID_GRANT", appErr.Code)
}

/*
TestService_RotateRefreshToken_Inactivity verifies the inactivity cutoff: a
session idle past the threshold is revoked with the session-inactive code,
distinct from a generic invalid grant.
*/
func TestService_RotateRefreshToken_Inactivity(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	base := time.Now()
	fx.service.now = func() time.Time { return base }
	pair, err := fx.service.CreateSession(ctx, "user-1", DeviceMetadata{})
	require.NoError(t, err)

	// One minute past the cutoff.
	fx.service.now = func() time.Time { return base.Add(constants.SessionInactivityTimeout + time.Minute) }
	_, err = fx.service.RotateRefreshToken(ctx, pair.RefreshToken, DeviceMetadata{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionInactive))
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "SESSION_INACTIVE", appErr.Code)
	assert.Equal(t, 0, fx.store.activeCount())
}

/*
TestService_RotateRefreshToken_ActivityExtendsSession verifies the sliding
window: regular refreshes keep a session alive past the inactivity cutoff
measured from login.
*/
func TestService_RotateRefreshToken_ActivityExtendsSession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	base := time.Now()
	fx.service.now = func() time.Time { return base }
	pair, err := fx.service.CreateSession(ctx, "user-1", DeviceMetadata{})
	require.NoError(t, err)

	// Refresh every 48h. Each rotation resets the activity clock, so the
	// session survives well past 72h from login.
	current := pair
	for step := 1; step <= 3; step++ {
		offset := time.Duration(step) * 48 * time.Hour
		fx.service.now = func() time.Time { return base.Add(offset) }
		current, err = fx.service.RotateRefreshToken(ctx, current.RefreshToken, DeviceMetadata{})
		require.NoError(t, err, "rotation %d should succeed", step)
	}
}

/*
TestService_RotateRefreshToken_Expired verifies the absolute sliding expiry.
*/
func TestService_RotateRefreshToken_Expired(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	base := time.Now()
	fx.service.now = func() time.Time { return base }
	pair, err := fx.service.CreateSession(ctx, "user-1", DeviceMetadata{})
	require.NoError(t, err)

	fx.service.now = func() time.Time { return base.Add(constants.RefreshTokenTTL + time.Hour) }
	_, err = fx.service.RotateRefreshToken(ctx, pair.RefreshToken, DeviceMetadata{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionExpired))
}

/*
TestService_RotateRefreshToken_ConcurrentSingleWinner verifies that N
concurrent rotations of the same token produce exactly one winner.
*/
func TestService_RotateRefreshToken_ConcurrentSingleWinner(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	pair, err := fx.service.CreateSession(ctx, "user-1", DeviceMetadata{})
	require.NoError(t, err)

	const attempts = 8
	results := make(chan error, attempts)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		go func() {
			start.Wait()
			_, rotateErr := fx.service.RotateRefreshToken(ctx, pair.RefreshToken, DeviceMetadata{})
			results <- rotateErr
		}()
	}
	start.Done()

	winners := 0
	for i := 0; i < attempts; i++ {
		if <-results == nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

/*
TestService_RevokeSessionByRefreshToken verifies single-device logout and its
idempotency.
*/
func TestService_RevokeSessionByRefreshToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	pair, err := fx.service.CreateSession(ctx, "user-1", DeviceMetadata{})
	require.NoError(t, err)

	require.NoError(t, fx.service.RevokeSessionByRefreshToken(ctx, pair.RefreshToken))
	assert.Equal(t, 0, fx.store.activeCount())

	// Repeating the logout, or presenting garbage, still succeeds.
	require.NoError(t, fx.service.RevokeSessionByRefreshToken(ctx, pair.RefreshToken))
	require.NoError(t, fx.service.RevokeSessionByRefreshToken(ctx, "not-a-token"))
}

/*
TestService_RevokeAllUserSessions verifies logout-everywhere: every session of
the user is revoked and the account is stamped with a global-logout watermark.
*/
func TestService_RevokeAllUserSessions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := fx.service.CreateSession(ctx, "user-1", DeviceMetadata{})
		require.NoError(t, err)
	}
	_, err := fx.service.CreateSession(ctx, "user-2", DeviceMetadata{})
	require.NoError(t, err)

	revoked, err := fx.service.RevokeAllUserSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), revoked)
	assert.Equal(t, 1, fx.store.activeCount())

	_, stamped := fx.stamps.stamped["user-1"]
	assert.True(t, stamped)
}

/*
TestService_CleanupExpiredSessions verifies the background sweep removes only
rows past their expiry.
*/
func TestService_CleanupExpiredSessions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	base := time.Now()
	fx.service.now = func() time.Time { return base }
	_, err := fx.service.CreateSession(ctx, "user-1", DeviceMetadata{})
	require.NoError(t, err)

	fx.service.now = func() time.Time { return base.Add(constants.RefreshTokenTTL + time.Hour) }
	deleted, err := fx.service.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, 0, fx.store.activeCount())
}

/*
TestService_CreateSessionWithOptions verifies that a caller can continue an
existing token family, tag the session with an environment, and have the
device fingerprint stored verbatim.
*/
func TestService_CreateSessionWithOptions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	device := DeviceMetadata{UserAgent: "go-test", IP: "203.0.113.7", Fingerprint: "fp-device-42"}
	pair, err := fx.service.CreateSessionWithOptions(ctx, "user-1", device, SessionOptions{
		TokenFamily: "family-abc",
		Environment: "staging",
	})
	require.NoError(t, err)
	require.NotNil(t, pair)

	claims, err := fx.tokens.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "family-abc", claims.TokenFamily)

	stored, err := fx.store.FindActive(ctx, "user-1", sec.HashToken(pair.RefreshToken), "family-abc")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "staging", stored.Environment)
	assert.Equal(t, "fp-device-42", stored.Device.Fingerprint)

	// Rotation stays within the continued family.
	rotatedPair, err := fx.service.RotateRefreshToken(ctx, pair.RefreshToken, device)
	require.NoError(t, err)
	rotatedClaims, err := fx.tokens.ValidateRefreshToken(rotatedPair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "family-abc", rotatedClaims.TokenFamily)
}
