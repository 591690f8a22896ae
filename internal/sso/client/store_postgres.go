// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentgrid/identity/internal/platform/apperr"
)

// PostgresStore implements the Store interface using pgx. URI lists ride in
// JSONB columns; pgx maps them through the struct tags on [TaggedURI].
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL implementation of the Store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const clientColumns = `
	id, clientid, clientsecret, name, redirecturis, logouturis,
	defaultintent, isactive, allowedscopes, createdat, updatedat`

// scanClient hydrates a [Client] from a row carrying clientColumns.
func scanClient(row pgx.Row) (*Client, error) {
	c := &Client{}
	err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.ClientSecret,
		&c.Name,
		&c.RedirectURIs,
		&c.LogoutURIs,
		&c.DefaultIntent,
		&c.IsActive,
		&c.AllowedScopes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

/*
Create persists a new client record into the sso.client table.

Parameters:
  - context: context.Context
  - client: The client entity to insert

Returns:
  - err: Wrapped storage errors
*/
func (store *PostgresStore) Create(context context.Context, client *Client) error {
	query := `
		INSERT INTO sso.client (
			id, clientid, clientsecret, name, redirecturis, logouturis,
			defaultintent, isactive, allowedscopes, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := store.pool.Exec(context, query,
		client.ID,
		client.ClientID,
		client.ClientSecret,
		client.Name,
		client.RedirectURIs,
		client.LogoutURIs,
		client.DefaultIntent,
		client.IsActive,
		client.AllowedScopes,
		client.CreatedAt,
		client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_client_store_create_failed: %w", err)
	}
	return nil
}

// FindByClientID returns the non-deleted client with the given public id.
func (store *PostgresStore) FindByClientID(context context.Context, clientID string) (*Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM sso.client
		WHERE clientid = $1 AND deletedat IS NULL`

	client, err := scanClient(store.pool.QueryRow(context, query, clientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Client")
		}
		return nil, fmt.Errorf("postgres_client_store_find_failed: %w", err)
	}
	return client, nil
}

// List returns all non-deleted clients, newest first.
func (store *PostgresStore) List(context context.Context) ([]*Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM sso.client
		WHERE deletedat IS NULL
		ORDER BY createdat DESC`

	rows, err := store.pool.Query(context, query)
	if err != nil {
		return nil, fmt.Errorf("postgres_client_store_list_failed: %w", err)
	}
	defer rows.Close()

	clients := make([]*Client, 0)
	for rows.Next() {
		client, scanErr := scanClient(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("postgres_client_store_list_scan_failed: %w", scanErr)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_client_store_list_rows_failed: %w", err)
	}
	return clients, nil
}

// Update persists the mutable client fields.
func (store *PostgresStore) Update(context context.Context, client *Client) error {
	query := `
		UPDATE sso.client
		SET name = $1, redirecturis = $2, logouturis = $3, defaultintent = $4,
		    allowedscopes = $5, updatedat = $6
		WHERE clientid = $7 AND deletedat IS NULL`

	tag, err := store.pool.Exec(context, query,
		client.Name,
		client.RedirectURIs,
		client.LogoutURIs,
		client.DefaultIntent,
		client.AllowedScopes,
		client.UpdatedAt,
		client.ClientID,
	)
	if err != nil {
		return fmt.Errorf("postgres_client_store_update_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Client")
	}
	return nil
}

// SetActive toggles the active flag.
func (store *PostgresStore) SetActive(context context.Context, clientID string, active bool) error {
	query := `UPDATE sso.client SET isactive = $1, updatedat = NOW() WHERE clientid = $2 AND deletedat IS NULL`

	tag, err := store.pool.Exec(context, query, active, clientID)
	if err != nil {
		return fmt.Errorf("postgres_client_store_set_active_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Client")
	}
	return nil
}

// SoftDelete stamps the deletion timestamp.
func (store *PostgresStore) SoftDelete(context context.Context, clientID string) error {
	query := `UPDATE sso.client SET deletedat = NOW(), isactive = FALSE WHERE clientid = $1 AND deletedat IS NULL`

	tag, err := store.pool.Exec(context, query, clientID)
	if err != nil {
		return fmt.Errorf("postgres_client_store_soft_delete_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Client")
	}
	return nil
}
