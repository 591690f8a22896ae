// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package authcode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talentgrid/identity/internal/platform/constants"
	"github.com/talentgrid/identity/internal/platform/sec"
)

// consumeScript atomically retires a code. It returns the stored payload on
// the first consumption, "USED" while the grace tombstone lives, and false
// otherwise. Running as a single Lua script gives the check-and-mark-used
// sequence the required atomicity across concurrent consumers on any
// instance.
var consumeScript = redis.NewScript(`
	local payload = redis.call('GET', KEYS[1])
	if payload then
		redis.call('DEL', KEYS[1])
		redis.call('SET', KEYS[1] .. ':used', '1', 'PX', ARGV[1])
		return payload
	end
	if redis.call('EXISTS', KEYS[1] .. ':used') == 1 then
		return 'USED'
	end
	return false
`)

// RedisStore is a shared Store reachable by every instance handling token
// calls. Expiry rides on Redis key TTLs, so no sweeper is needed.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed code store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func codeKey(code string) string {
	return constants.RedisPrefixAuthCode + code
}

// CreateCode implements [Store].
func (store *RedisStore) CreateCode(context context.Context, input CreateInput) (string, error) {
	code, err := sec.GenerateSecureToken(constants.SecureTokenLength)
	if err != nil {
		return "", err
	}

	record := Record{
		UserID:              input.UserID,
		ClientID:            input.ClientID,
		RedirectURI:         input.RedirectURI,
		State:               input.State,
		CodeChallenge:       input.CodeChallenge,
		CodeChallengeMethod: input.CodeChallengeMethod,
		ExpiresAt:           time.Now().Add(constants.AuthorizationCodeTTL),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("redis_authcode_store_marshal_failed: %w", err)
	}

	if err := store.client.Set(context, codeKey(code), payload, constants.AuthorizationCodeTTL).Err(); err != nil {
		return "", fmt.Errorf("redis_authcode_store_create_failed: %w", err)
	}
	return code, nil
}

// ConsumeCode implements [Store]. An expired code has already fallen out of
// Redis, so expiry surfaces as ErrNotFound here; callers treat both alike.
func (store *RedisStore) ConsumeCode(context context.Context, code string) (*Record, error) {
	result, err := consumeScript.Run(context, store.client,
		[]string{codeKey(code)},
		constants.AuthorizationCodeGrace.Milliseconds(),
	).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis_authcode_store_consume_failed: %w", err)
	}

	payload, ok := result.(string)
	if !ok {
		return nil, ErrNotFound
	}
	if payload == "USED" {
		return nil, ErrAlreadyUsed
	}

	record := &Record{}
	if err := json.Unmarshal([]byte(payload), record); err != nil {
		return nil, fmt.Errorf("redis_authcode_store_unmarshal_failed: %w", err)
	}
	return record, nil
}
