// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

// Package session implements server-side refresh sessions with token
// rotation, replay detection and inactivity cutoff.
//
// # Model
//
// Every login creates one session row bound to a token family. The refresh
// token itself is a signed JWT; only its SHA-256 hash is persisted. Each
// successful refresh rotates the stored hash in place, so at any instant
// exactly one refresh token per session is live. Presenting a superseded
// token therefore proves replay and revokes the whole family.
package session

import (
	"errors"
	"time"
)

// Sentinel errors for the rotation state machine.
var (
	// ErrTokenReuse is returned when a refresh token is structurally valid
	// but no active session holds its hash. The family has been revoked.
	ErrTokenReuse = errors.New("session: refresh token reuse detected")

	// ErrSessionInactive is returned when the session exceeded the
	// inactivity cutoff and was revoked.
	ErrSessionInactive = errors.New("session: inactive too long")

	// ErrSessionExpired is returned when the session passed its absolute
	// sliding expiry.
	ErrSessionExpired = errors.New("session: expired")
)

// DeviceMetadata captures the client device at login and refresh time.
// It is stored for audit only and never used for session matching.
type DeviceMetadata struct {
	UserAgent string `json:"user_agent,omitempty"`
	IP        string `json:"ip,omitempty"`
	// Fingerprint is an optional client-supplied device fingerprint,
	// stored verbatim.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// SessionOptions carries the optional attributes of a new session.
type SessionOptions struct {
	// TokenFamily continues an existing family instead of starting a new
	// one. Empty mints a fresh family.
	TokenFamily string

	// Environment tags the session with the deployment environment that
	// opened it.
	Environment string
}

// Session is one refresh session row.
type Session struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	TokenHash      string         `json:"-"`
	TokenFamily    string         `json:"token_family"`
	Device         DeviceMetadata `json:"device"`
	Environment    string         `json:"environment,omitempty"`
	Revoked        bool           `json:"revoked"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TokenPair is the result of a login or a successful rotation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
