// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package client

import "context"

// Store persists registered clients.
type Store interface {

	// Create inserts a new client.
	Create(context context.Context, client *Client) error

	// FindByClientID returns the non-deleted client with the given public
	// client id.
	FindByClientID(context context.Context, clientID string) (*Client, error)

	// List returns all non-deleted clients.
	List(context context.Context) ([]*Client, error)

	// Update persists changed client fields.
	Update(context context.Context, client *Client) error

	// SetActive toggles the active flag.
	SetActive(context context.Context, clientID string, active bool) error

	// SoftDelete stamps the deletion timestamp. The row remains for audit
	// but no lookup returns it.
	SoftDelete(context context.Context, clientID string) error
}
