// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package sso

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/talentgrid/identity/internal/platform/middleware"
	requestutil "github.com/talentgrid/identity/internal/platform/request"
	"github.com/talentgrid/identity/internal/platform/respond"
	"github.com/talentgrid/identity/internal/platform/validate"
	"github.com/talentgrid/identity/internal/sso/client"
)

// # Definitions & Constructors

// Handler implements the OAuth2-shaped SSO endpoints.
type Handler struct {
	ssoService    *Service
	clientService *client.Service

	// loginPageURL is where anonymous authorize calls are sent. The
	// original authorize URL rides along as return_to so login can resume
	// the flow.
	loginPageURL string
}

// NewHandler constructs a new [Handler] with its service dependencies.
func NewHandler(ssoService *Service, clientService *client.Service, loginPageURL string) *Handler {
	return &Handler{
		ssoService:    ssoService,
		clientService: clientService,
		loginPageURL:  loginPageURL,
	}
}

// Routes returns a [chi.Router] configured with the SSO flow routes.
//
// # Endpoints
//   - GET  /authorize : Issues an authorization code and redirects.
//   - POST /token     : Exchanges a code for a token pair.
//   - GET  /launch/{clientID} : Starts SSO into a client app.
//   - GET  /entry     : Marketing-entry redirect by intent + environment.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/authorize", handler.authorize)
	router.Post("/token", handler.token)
	router.Get("/entry", handler.entry)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/launch/{clientID}", handler.launch)
	})

	return router
}

/*
authorize issues an authorization code bound to the authenticated user.

GET /api/v1/sso/authorize?client_id=...&redirect_uri=...&state=...&code_challenge=...&code_challenge_method=...

Description: Anonymous callers are redirected to the login page with the full
authorize URL as return_to; this endpoint never prompts for credentials
itself. Authenticated callers receive a 302 to the client's redirect URI with
code and state appended.

Response:
  - 302: Redirect to client callback, or to login for anonymous callers
  - 400: INVALID_REDIRECT_URI / VALIDATION_ERROR
  - 401: INVALID_CLIENT: Unknown or inactive client
*/
func (handler *Handler) authorize(writer http.ResponseWriter, request *http.Request) {
	claims := requestutil.Claims(request)
	if claims == nil {
		handler.redirectToLogin(writer, request)
		return
	}

	query := request.URL.Query()
	validator := &validate.Validator{}
	validator.Required("client_id", query.Get("client_id")).
		Required("redirect_uri", query.Get("redirect_uri"))
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	redirectURL, err := handler.ssoService.Authorize(request.Context(), AuthorizeInput{
		UserID:              claims.Subject,
		ClientID:            query.Get("client_id"),
		RedirectURI:         query.Get("redirect_uri"),
		State:               query.Get("state"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, redirectURL, http.StatusFound)
}

/*
token exchanges an authorization code for a platform token pair.

POST /api/v1/sso/token

Description: Accepts standard form encoding (per RFC 6749) and falls back to
JSON for first-party convenience. The response is the bare token payload, not
the envelope, so off-the-shelf OAuth client libraries can parse it.

Request:
  - Form/Body: grant_type, code, client_id, client_secret?, redirect_uri, code_verifier?

Response:
  - 200: TokenResponse
  - 400: INVALID_GRANT: Any code, binding, or PKCE failure
  - 401: INVALID_CLIENT: Client authentication failed
*/
func (handler *Handler) token(writer http.ResponseWriter, request *http.Request) {
	input, err := decodeTokenRequest(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	response, err := handler.ssoService.ExchangeToken(request.Context(), *input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Raw(writer, response)
}

/*
launch starts an SSO flow into a client application.

GET /api/v1/sso/launch/{clientID}

Response:
  - 302: Redirect into the authorize flow for the client's first URI
  - 401: INVALID_CLIENT: Unknown or inactive client
*/
func (handler *Handler) launch(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	redirectURL, err := handler.ssoService.LaunchSSO(request.Context(), userID, requestutil.Param(request, "clientID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, redirectURL, http.StatusFound)
}

/*
entry redirects a marketing-site visitor to the application serving their
intent.

GET /api/v1/sso/entry?intent=candidate&environment=production

Response:
  - 302: Redirect to the selected client's redirect URI
  - 404: ErrNotFound: No active client serves the intent
*/
func (handler *Handler) entry(writer http.ResponseWriter, request *http.Request) {
	intent := client.Intent(request.URL.Query().Get("intent"))
	environment := client.Environment(request.URL.Query().Get("environment"))
	if environment == "" {
		environment = client.EnvProduction
	}

	validator := &validate.Validator{}
	validator.OneOf("intent", string(intent),
		string(client.IntentClient), string(client.IntentCandidate), string(client.IntentBoth))
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	_, redirectURI, err := handler.clientService.FindByIntentAndEnvironment(request.Context(), intent, environment)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, redirectURI, http.StatusFound)
}

// # Helpers

// decodeTokenRequest reads the token call from form encoding, falling back
// to JSON.
func decodeTokenRequest(request *http.Request) (*ExchangeTokenInput, error) {
	input := &ExchangeTokenInput{
		UserAgent: request.UserAgent(),
		IPAddress: getClientIP(request),
	}

	contentType := request.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var body struct {
			GrantType    string `json:"grant_type"`
			Code         string `json:"code"`
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
			RedirectURI  string `json:"redirect_uri"`
			CodeVerifier string `json:"code_verifier"`
		}
		if err := requestutil.DecodeJSON(request, &body); err != nil {
			return nil, validate.ErrInvalidJSON
		}
		input.GrantType = body.GrantType
		input.Code = body.Code
		input.ClientID = body.ClientID
		input.ClientSecret = body.ClientSecret
		input.RedirectURI = body.RedirectURI
		input.CodeVerifier = body.CodeVerifier
		return input, nil
	}

	if err := request.ParseForm(); err != nil {
		return nil, validate.ErrInvalidJSON
	}
	input.GrantType = request.PostFormValue("grant_type")
	input.Code = request.PostFormValue("code")
	input.ClientID = request.PostFormValue("client_id")
	input.ClientSecret = request.PostFormValue("client_secret")
	input.RedirectURI = request.PostFormValue("redirect_uri")
	input.CodeVerifier = request.PostFormValue("code_verifier")
	return input, nil
}

// redirectToLogin sends an anonymous authorize caller to the login page with
// the original URL as return_to.
func (handler *Handler) redirectToLogin(writer http.ResponseWriter, request *http.Request) {
	loginURL, err := url.Parse(handler.loginPageURL)
	if err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}
	query := loginURL.Query()
	query.Set("return_to", request.URL.String())
	loginURL.RawQuery = query.Encode()
	http.Redirect(writer, request, loginURL.String(), http.StatusFound)
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
