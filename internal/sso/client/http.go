// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package client

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talentgrid/identity/internal/platform/middleware"
	requestutil "github.com/talentgrid/identity/internal/platform/request"
	"github.com/talentgrid/identity/internal/platform/respond"
	"github.com/talentgrid/identity/internal/platform/sec"
	"github.com/talentgrid/identity/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the administrative client registry endpoints.
//
// # Scope
//
// Every route requires an authenticated admin. The client secret appears in
// exactly one response: the creation reply.
type Handler struct {
	clientService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{clientService: service}
}

// Routes returns a [chi.Router] configured with client administration routes.
//
// # Endpoints
//   - GET    /               : Lists registered clients.
//   - POST   /               : Registers a new client.
//   - GET    /{clientID}     : Fetches one client.
//   - PATCH  /{clientID}     : Updates a client.
//   - DELETE /{clientID}     : Soft-deletes a client.
//   - POST   /{clientID}/activate   : Re-enables a client.
//   - POST   /{clientID}/deactivate : Disables a client.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequireAuth)
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/", handler.list)
	router.Post("/", handler.create)
	router.Get("/{clientID}", handler.find)
	router.Patch("/{clientID}", handler.update)
	router.Delete("/{clientID}", handler.remove)
	router.Post("/{clientID}/activate", handler.setActive(true))
	router.Post("/{clientID}/deactivate", handler.setActive(false))

	return router
}

// # Request Payloads

type createClientRequest struct {
	Name          string      `json:"name"`
	RedirectURIs  []TaggedURI `json:"redirect_uris"`
	LogoutURIs    []TaggedURI `json:"logout_uris"`
	DefaultIntent Intent      `json:"default_intent"`
	AllowedScopes []string    `json:"allowed_scopes"`
}

type updateClientRequest struct {
	Name          *string     `json:"name"`
	RedirectURIs  []TaggedURI `json:"redirect_uris"`
	LogoutURIs    []TaggedURI `json:"logout_uris"`
	DefaultIntent *Intent     `json:"default_intent"`
	AllowedScopes []string    `json:"allowed_scopes"`
}

// createClientResponse carries the secret exactly once.
type createClientResponse struct {
	*Client
	ClientSecret string `json:"client_secret"`
}

/*
create registers a new client application.

POST /api/v1/sso/clients

Response:
  - 201: createClientResponse: Client with its one-time secret
  - 400: INVALID_LOGOUT_URI: A logout URI violates the policy
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var input createClientRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required("name", input.Name).MaxLen("name", input.Name, 120)
	if input.DefaultIntent != "" {
		validator.OneOf("default_intent", string(input.DefaultIntent),
			string(IntentClient), string(IntentCandidate), string(IntentBoth))
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	created, err := handler.clientService.Create(request.Context(), CreateInput{
		Name:          input.Name,
		RedirectURIs:  input.RedirectURIs,
		LogoutURIs:    input.LogoutURIs,
		DefaultIntent: input.DefaultIntent,
		AllowedScopes: input.AllowedScopes,
		ActorUserID:   actorID,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, createClientResponse{Client: created, ClientSecret: created.ClientSecret})
}

// list returns all registered clients.
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	clients, err := handler.clientService.List(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, clients)
}

// find returns one registered client.
func (handler *Handler) find(writer http.ResponseWriter, request *http.Request) {
	found, err := handler.clientService.Find(request.Context(), requestutil.Param(request, "clientID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, found)
}

/*
update modifies a registered client.

PATCH /api/v1/sso/clients/{clientID}

Response:
  - 200: Client: Updated client
  - 400: INVALID_LOGOUT_URI: A logout URI violates the policy
  - 404: ErrNotFound: Unknown client id
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	var input updateClientRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	updated, err := handler.clientService.Update(request.Context(), requestutil.Param(request, "clientID"), UpdateInput{
		Name:          input.Name,
		RedirectURIs:  input.RedirectURIs,
		LogoutURIs:    input.LogoutURIs,
		DefaultIntent: input.DefaultIntent,
		AllowedScopes: input.AllowedScopes,
		ActorUserID:   actorID,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, updated)
}

// remove soft-deletes a client.
func (handler *Handler) remove(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.clientService.Delete(request.Context(), requestutil.Param(request, "clientID"), actorID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// setActive builds the activate/deactivate handler.
func (handler *Handler) setActive(active bool) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		actorID, err := requestutil.RequiredUserID(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		if err := handler.clientService.SetActive(request.Context(), requestutil.Param(request, "clientID"), active, actorID); err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, map[string]bool{"is_active": active})
	}
}
