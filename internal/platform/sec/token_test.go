// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package sec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgrid/identity/internal/platform/sec"
)

func newTokenService() *sec.TokenService {
	return sec.NewTokenService(
		"access-secret-for-tests-only",
		"refresh-secret-for-tests-only",
		"service-secret-for-tests-only",
		"id.talentgrid.dev",
	)
}

/*
TestTokenService_AccessTokenRoundTrip verifies issued access tokens validate
and carry their claims.
*/
func TestTokenService_AccessTokenRoundTrip(t *testing.T) {
	service := newTokenService()

	token, err := service.IssueAccessToken(sec.AccessTokenInput{
		UserID:             "user-1",
		Email:              "candidate@talentgrid.dev",
		Roles:              []string{"candidate"},
		ClientName:         "Acme ATS",
		MustChangePassword: true,
	})
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "candidate@talentgrid.dev", claims.Email)
	assert.Equal(t, []string{"candidate"}, claims.Roles)
	assert.Equal(t, "Acme ATS", claims.ClientName)
	assert.True(t, claims.MustChangePassword)
	assert.Equal(t, "id.talentgrid.dev", claims.Issuer)
	require.NotNil(t, claims.IssuedAt)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, 5*time.Second)
}

/*
TestTokenService_SecretsAreIsolated verifies that tokens signed with one
secret never validate under another path: a refresh token is not an access
token even though both are HS256 JWTs.
*/
func TestTokenService_SecretsAreIsolated(t *testing.T) {
	service := newTokenService()

	refreshToken, err := service.IssueRefreshToken("user-1", "family-1")
	require.NoError(t, err)
	accessToken, err := service.IssueAccessToken(sec.AccessTokenInput{UserID: "user-1", Email: "a@b.c"})
	require.NoError(t, err)
	serviceToken, err := service.IssueServiceToken("client-1", "Acme ATS", []string{"read"})
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(refreshToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
	_, err = service.ValidateRefreshToken(accessToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
	_, err = service.ValidateAccessToken(serviceToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
	_, err = service.ValidateServiceToken(refreshToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestTokenService_UniformFailure verifies that malformed, forged, and
wrong-issuer tokens all fail with exactly ErrInvalidToken, never a reasoned
error a caller could use as an oracle.
*/
func TestTokenService_UniformFailure(t *testing.T) {
	service := newTokenService()
	forger := sec.NewTokenService("a", "b", "c", "id.talentgrid.dev")

	forged, err := forger.IssueAccessToken(sec.AccessTokenInput{UserID: "user-1", Email: "a@b.c"})
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"empty", ""},
		{"forged_signature", forged},
		{"truncated", forged[:len(forged)/2]},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, validateErr := service.ValidateAccessToken(tc.token)
			assert.ErrorIs(t, validateErr, sec.ErrInvalidToken)
		})
	}
}

/*
TestTokenService_RefreshTokenFamily verifies the family claim survives the
round trip and that families are unique per login.
*/
func TestTokenService_RefreshTokenFamily(t *testing.T) {
	service := newTokenService()

	family := sec.GenerateTokenFamily()
	assert.NotEqual(t, family, sec.GenerateTokenFamily())

	token, err := service.IssueRefreshToken("user-1", family)
	require.NoError(t, err)

	claims, err := service.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, family, claims.TokenFamily)
}

/*
TestTokenService_ServiceTokenScopes verifies machine-to-machine tokens carry
their explicit scope list.
*/
func TestTokenService_ServiceTokenScopes(t *testing.T) {
	service := newTokenService()

	token, err := service.IssueServiceToken("client-1", "Acme ATS", []string{"jobs:read", "jobs:write"})
	require.NoError(t, err)

	claims, err := service.ValidateServiceToken(token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.Subject)
	assert.Equal(t, "Acme ATS", claims.ClientName)
	assert.Equal(t, []string{"jobs:read", "jobs:write"}, claims.Scopes)
}
