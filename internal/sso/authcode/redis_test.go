// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package authcode

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgrid/identity/internal/platform/constants"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), server
}

/*
TestRedisStore_CreateAndConsume verifies the happy path against a real Redis
protocol surface, including the grace tombstone.
*/
func TestRedisStore_CreateAndConsume(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	code, err := store.CreateCode(ctx, createInput())
	require.NoError(t, err)

	record, err := store.ConsumeCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "https://app.acme.example/callback", record.RedirectURI)

	// The tombstone reports already-used during the grace window.
	_, err = store.ConsumeCode(ctx, code)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

/*
TestRedisStore_ConsumeUnknown verifies a never-issued code is a not-found.
*/
func TestRedisStore_ConsumeUnknown(t *testing.T) {
	store, _ := newRedisStore(t)

	_, err := store.ConsumeCode(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrNotFound)
}

/*
TestRedisStore_Expiry verifies that an expired code falls out of Redis via
key TTL and surfaces as not-found.
*/
func TestRedisStore_Expiry(t *testing.T) {
	store, server := newRedisStore(t)
	ctx := context.Background()

	code, err := store.CreateCode(ctx, createInput())
	require.NoError(t, err)

	server.FastForward(constants.AuthorizationCodeTTL + constants.AuthorizationCodeGrace)
	_, err = store.ConsumeCode(ctx, code)
	assert.ErrorIs(t, err, ErrNotFound)
}

/*
TestRedisStore_GraceTombstoneExpires verifies the already-used marker itself
disappears after the grace window.
*/
func TestRedisStore_GraceTombstoneExpires(t *testing.T) {
	store, server := newRedisStore(t)
	ctx := context.Background()

	code, err := store.CreateCode(ctx, createInput())
	require.NoError(t, err)
	_, err = store.ConsumeCode(ctx, code)
	require.NoError(t, err)

	server.FastForward(constants.AuthorizationCodeGrace + constants.AuthorizationCodeGrace)
	_, err = store.ConsumeCode(ctx, code)
	assert.ErrorIs(t, err, ErrNotFound)
}
