// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgrid/identity/internal/platform/ctxutil"
	"github.com/talentgrid/identity/internal/platform/middleware"
	"github.com/talentgrid/identity/internal/platform/sec"
)

// # Test Fixtures

type staticStamps struct {
	logoutAt map[string]int64
}

func (s staticStamps) GlobalLogoutAt(_ context.Context, userID string) (int64, bool, error) {
	at, ok := s.logoutAt[userID]
	return at, ok, nil
}

func newTokens() *sec.TokenService {
	return sec.NewTokenService("access-test", "refresh-test", "service-test", "id.talentgrid.dev")
}

// echoUserID is a terminal handler reporting the authenticated subject.
func echoUserID(writer http.ResponseWriter, request *http.Request) {
	claims := ctxutil.GetAuthUser(request.Context())
	if claims == nil {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("anonymous"))
		return
	}
	_, _ = writer.Write([]byte(claims.Subject))
}

func runRequest(t *testing.T, handler http.Handler, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

// # Tests

/*
TestAuthenticate_ValidToken verifies a signed access token reaches the
handler with its claims in context.
*/
func TestAuthenticate_ValidToken(t *testing.T) {
	tokens := newTokens()
	handler := middleware.Authenticate(tokens, staticStamps{})(http.HandlerFunc(echoUserID))

	token, err := tokens.IssueAccessToken(sec.AccessTokenInput{UserID: "user-1", Email: "a@b.c"})
	require.NoError(t, err)

	recorder := runRequest(t, handler, token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "user-1", recorder.Body.String())
}

/*
TestAuthenticate_AnonymousPassThrough verifies that a missing Authorization
header is not an error at this layer; RequireAuth decides later.
*/
func TestAuthenticate_AnonymousPassThrough(t *testing.T) {
	handler := middleware.Authenticate(newTokens(), staticStamps{})(http.HandlerFunc(echoUserID))

	recorder := runRequest(t, handler, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "anonymous", recorder.Body.String())
}

/*
TestAuthenticate_ForgedToken verifies a token signed elsewhere is rejected.
*/
func TestAuthenticate_ForgedToken(t *testing.T) {
	handler := middleware.Authenticate(newTokens(), staticStamps{})(http.HandlerFunc(echoUserID))

	forged, err := sec.NewTokenService("other", "other", "other", "id.talentgrid.dev").
		IssueAccessToken(sec.AccessTokenInput{UserID: "user-1", Email: "a@b.c"})
	require.NoError(t, err)

	recorder := runRequest(t, handler, forged)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

/*
TestAuthenticate_GlobalLogout verifies the watermark: an otherwise valid
token issued before the user's global logout is rejected, while a token
issued after passes.
*/
func TestAuthenticate_GlobalLogout(t *testing.T) {
	tokens := newTokens()

	token, err := tokens.IssueAccessToken(sec.AccessTokenInput{UserID: "user-1", Email: "a@b.c"})
	require.NoError(t, err)

	// Logout happened after the token was issued.
	stamps := staticStamps{logoutAt: map[string]int64{"user-1": time.Now().Add(time.Minute).Unix()}}
	handler := middleware.Authenticate(tokens, stamps)(http.HandlerFunc(echoUserID))
	recorder := runRequest(t, handler, token)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Logout happened before the token was issued.
	stamps = staticStamps{logoutAt: map[string]int64{"user-1": time.Now().Add(-time.Minute).Unix()}}
	handler = middleware.Authenticate(tokens, stamps)(http.HandlerFunc(echoUserID))
	recorder = runRequest(t, handler, token)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

/*
TestRequireAuth verifies the gate: anonymous requests stop with 401,
authenticated ones pass.
*/
func TestRequireAuth(t *testing.T) {
	tokens := newTokens()
	handler := middleware.Authenticate(tokens, staticStamps{})(
		middleware.RequireAuth(http.HandlerFunc(echoUserID)))

	recorder := runRequest(t, handler, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	token, err := tokens.IssueAccessToken(sec.AccessTokenInput{UserID: "user-1", Email: "a@b.c"})
	require.NoError(t, err)
	recorder = runRequest(t, handler, token)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

/*
TestRequireRole verifies role enforcement over the roles claim.
*/
func TestRequireRole(t *testing.T) {
	tokens := newTokens()
	adminOnly := middleware.Authenticate(tokens, staticStamps{})(
		middleware.RequireAuth(
			middleware.RequireRole(sec.RoleAdmin)(http.HandlerFunc(echoUserID))))

	candidateToken, err := tokens.IssueAccessToken(sec.AccessTokenInput{UserID: "user-1", Email: "a@b.c", Roles: []string{"candidate"}})
	require.NoError(t, err)
	recorder := runRequest(t, adminOnly, candidateToken)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	adminToken, err := tokens.IssueAccessToken(sec.AccessTokenInput{UserID: "user-2", Email: "x@b.c", Roles: []string{"admin"}})
	require.NoError(t, err)
	recorder = runRequest(t, adminOnly, adminToken)
	assert.Equal(t, http.StatusOK, recorder.Code)
}
