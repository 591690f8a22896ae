// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

// Package audit defines the fire-and-forget audit trail contract.
//
// # Architecture
//
// Audit persistence is an external collaborator of the identity core. The core
// only emits [Entry] values through a [Sink]; a failing sink must never block
// or fail an authentication flow.
package audit

import (
	"context"
	"log/slog"
)

// Entry describes one auditable security event.
type Entry struct {
	ActorUserID string         `json:"actor_user_id"`
	ActorRole   string         `json:"actor_role,omitempty"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Changes     map[string]any `json:"changes,omitempty"`
	IP          string         `json:"ip,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
}

// Well-known audit actions emitted by the identity core.
const (
	ActionLogin             = "auth.login"
	ActionLogout            = "auth.logout"
	ActionGlobalLogout      = "auth.logout_all"
	ActionTokenRotated      = "auth.token_rotated"
	ActionTokenReuse        = "auth.token_reuse_detected"
	ActionFederatedLogin    = "auth.federated_login"
	ActionFederatedSignup   = "auth.federated_signup"
	ActionSSOCodeIssued     = "sso.code_issued"
	ActionSSOCodeExchanged  = "sso.code_exchanged"
	ActionClientCreated     = "sso.client_created"
	ActionClientUpdated     = "sso.client_updated"
	ActionClientDeactivated = "sso.client_deactivated"
)

// Sink receives audit entries. Implementations must swallow their own errors.
type Sink interface {
	Log(context context.Context, entry Entry)
}

// # Default Sink

// SlogSink writes audit entries to the structured log. It is the default sink
// until the audit-log service consumes entries directly.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates an audit sink backed by the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.With(slog.String("channel", "audit"))}
}

// Log implements [Sink].
func (sink *SlogSink) Log(context context.Context, entry Entry) {
	sink.logger.InfoContext(context, "audit_entry",
		slog.String("action", entry.Action),
		slog.String("actor_user_id", entry.ActorUserID),
		slog.String("entity_type", entry.EntityType),
		slog.String("entity_id", entry.EntityID),
		slog.Any("changes", entry.Changes),
		slog.String("ip", entry.IP),
	)
}
