// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

// Package email defines the outbound email contract used by federation bridges.
//
// Delivery is an external collaborator: a send failure is caught and logged by
// the caller, never surfaced as an authentication failure.
package email

import (
	"context"
	"log/slog"
)

// Sender delivers transactional identity emails.
type Sender interface {

	// SendWelcome delivers the first-signup welcome email.
	SendWelcome(context context.Context, toAddress, displayName string) error
}

// # Default Sender

// SlogSender logs instead of sending. Used in development and as a safe
// default until the delivery service is wired.
type SlogSender struct {
	logger *slog.Logger
}

// NewSlogSender creates a log-only email sender.
func NewSlogSender(logger *slog.Logger) *SlogSender {
	return &SlogSender{logger: logger.With(slog.String("channel", "email"))}
}

// SendWelcome implements [Sender].
func (sender *SlogSender) SendWelcome(context context.Context, toAddress, displayName string) error {
	sender.logger.InfoContext(context, "email_welcome_skipped_dev_mode",
		slog.String("to", toAddress),
		slog.String("display_name", displayName),
	)
	return nil
}
