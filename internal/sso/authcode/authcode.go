// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

/*
Package authcode implements the single-use authorization code store for the
SSO flow.

# Consumption Semantics

A code is consumable exactly once. The check-and-mark-used step is atomic with
respect to concurrent consumers; two simultaneous token calls for the same
code yield exactly one success. A consumed code is remembered for a short
grace window so a near-simultaneous duplicate surfaces as "already used"
rather than "not found", then disappears entirely.

Two implementations ship: an in-memory store for single-instance deployments
and a Redis store for anything horizontally scaled. The code-issuing instance
and the code-consuming instance are not guaranteed to be the same process,
so multi-instance deployments must use the Redis store.
*/
package authcode

import (
	"context"
	"errors"
	"time"
)

// Consumption failures. Callers collapse all three into one generic
// invalid-grant response; the distinction exists for logs and tests.
var (
	ErrNotFound    = errors.New("authcode: not found")
	ErrExpired     = errors.New("authcode: expired")
	ErrAlreadyUsed = errors.New("authcode: already used")
)

// Record is the state bound to one authorization code.
type Record struct {
	UserID              string    `json:"user_id"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	State               string    `json:"state,omitempty"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// CreateInput holds the bindings of a freshly minted code.
type CreateInput struct {
	UserID              string
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Store issues and consumes single-use authorization codes.
type Store interface {

	// CreateCode mints a high-entropy code bound to the input and returns
	// it. The raw code is never logged in full.
	CreateCode(context context.Context, input CreateInput) (string, error)

	// ConsumeCode atomically retires a code and returns its bindings.
	// Exactly one concurrent consumer succeeds; the rest fail with
	// ErrAlreadyUsed or ErrNotFound.
	ConsumeCode(context context.Context, code string) (*Record, error)
}
