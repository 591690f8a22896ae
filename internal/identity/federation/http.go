// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package federation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talentgrid/identity/internal/identity/user"
	requestutil "github.com/talentgrid/identity/internal/platform/request"
	"github.com/talentgrid/identity/internal/platform/respond"
	"github.com/talentgrid/identity/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the federated token-exchange HTTP endpoints.
type Handler struct {
	federationService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{federationService: service}
}

// Routes returns a [chi.Router] configured with one exchange endpoint per
// provider.
//
// # Endpoints
//   - POST /google/exchange   : Exchanges a Google ID token.
//   - POST /supabase/exchange : Exchanges a Supabase access token.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/google/exchange", handler.exchange(user.ProviderGoogle))
	router.Post("/supabase/exchange", handler.exchange(user.ProviderSupabase))

	return router
}

// # Request Payloads

type exchangeRequest struct {
	ExternalAccessToken string `json:"external_access_token"`
	ClientID            string `json:"client_id,omitempty"`
	ClientSecret        string `json:"client_secret,omitempty"`
}

/*
exchange builds the handler for one provider's token exchange.

POST /api/v1/federation/{provider}/exchange

Description: Verifies the external token, finds or creates the platform user,
and returns a platform token pair. Client credentials are optional; when
present they must match an active registered client.

Request:
  - Body: exchangeRequest (ExternalAccessToken, ClientID?, ClientSecret?)

Response:
  - 200: ExchangeResult: Token pair, profile, roles, is_new_user
  - 400: EMAIL_NOT_VERIFIED: Provider does not attest the email
  - 401: ErrUnauthorized: Provider token failed verification
  - 409: ErrConflict: Email linked to a different provider account
*/
func (handler *Handler) exchange(provider user.Provider) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		var input exchangeRequest

		if err := requestutil.DecodeJSON(request, &input); err != nil {
			respond.Error(writer, request, validate.ErrInvalidJSON)
			return
		}

		validator := &validate.Validator{}
		validator.Required("external_access_token", input.ExternalAccessToken)
		if err := validator.Err(); err != nil {
			respond.Error(writer, request, err)
			return
		}

		result, err := handler.federationService.Exchange(request.Context(), ExchangeInput{
			Provider:      provider,
			ExternalToken: input.ExternalAccessToken,
			ClientID:      input.ClientID,
			ClientSecret:  input.ClientSecret,
			UserAgent:     request.UserAgent(),
			IPAddress:     getClientIP(request),
		})
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		respond.OK(writer, result)
	}
}

// getClientIP tries to extract the real IP address of a user over proxy environments.
func getClientIP(request *http.Request) string {

	ip := request.Header.Get("X-Real-IP")
	if ip == "" {
		ip = request.Header.Get("X-Forwarded-For")
	}

	if ip == "" {
		ip = request.RemoteAddr
	}
	return ip
}
