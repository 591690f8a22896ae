// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

// In-package tests: the expiry cases drive the store's unexported clock
// instead of sleeping.
package authcode

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgrid/identity/internal/platform/constants"
)

func createInput() CreateInput {
	return CreateInput{
		UserID:      "user-1",
		ClientID:    "client-1",
		RedirectURI: "https://app.acme.example/callback",
		State:       "xyzzy",
	}
}

/*
TestMemoryStore_CreateAndConsume verifies the happy path: a minted code
returns its bindings exactly once.
*/
func TestMemoryStore_CreateAndConsume(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	code, err := store.CreateCode(ctx, createInput())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(code), 32, "code must be high-entropy")

	record, err := store.ConsumeCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "client-1", record.ClientID)
	assert.Equal(t, "https://app.acme.example/callback", record.RedirectURI)
	assert.Equal(t, "xyzzy", record.State)

	// Second consumption reads the grace tombstone.
	_, err = store.ConsumeCode(ctx, code)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

/*
TestMemoryStore_ConsumeUnknown verifies that a code never minted is a
not-found.
*/
func TestMemoryStore_ConsumeUnknown(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.ConsumeCode(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrNotFound)
}

/*
TestMemoryStore_ConsumeExpired verifies that a code past its 60-second expiry
fails and is removed.
*/
func TestMemoryStore_ConsumeExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	code, err := store.CreateCode(ctx, createInput())
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(constants.AuthorizationCodeTTL + time.Second) }
	_, err = store.ConsumeCode(ctx, code)
	assert.ErrorIs(t, err, ErrExpired)

	// The expired entry is gone entirely.
	_, err = store.ConsumeCode(ctx, code)
	assert.ErrorIs(t, err, ErrNotFound)
}

/*
TestMemoryStore_ConcurrentConsumeSingleSuccess verifies the atomicity
invariant: N simultaneous consumers of one code produce exactly one success.
*/
func TestMemoryStore_ConcurrentConsumeSingleSuccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	code, err := store.CreateCode(ctx, createInput())
	require.NoError(t, err)

	const attempts = 16
	errs := make(chan error, attempts)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		go func() {
			start.Wait()
			_, consumeErr := store.ConsumeCode(ctx, code)
			errs <- consumeErr
		}()
	}
	start.Done()

	successes := 0
	for i := 0; i < attempts; i++ {
		if <-errs == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}

/*
TestMemoryStore_Sweep verifies the periodic sweep deletes expired codes
regardless of use state and leaves live ones alone.
*/
func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	_, err := store.CreateCode(ctx, createInput())
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(30 * time.Second) }
	liveCode, err := store.CreateCode(ctx, createInput())
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(constants.AuthorizationCodeTTL + time.Second) }
	assert.Equal(t, 1, store.Sweep())

	// The younger code survived the sweep.
	_, err = store.ConsumeCode(ctx, liveCode)
	require.NoError(t, err)
}
