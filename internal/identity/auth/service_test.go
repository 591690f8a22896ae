// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgrid/identity/internal/identity/audit"
	"github.com/talentgrid/identity/internal/identity/auth"
	"github.com/talentgrid/identity/internal/identity/session"
	"github.com/talentgrid/identity/internal/identity/user"
	"github.com/talentgrid/identity/internal/platform/apperr"
	"github.com/talentgrid/identity/internal/platform/sec"
)

// # Test Fixtures

type fakeUserRepo struct {
	byEmail map[string]*user.User
}

func (repo *fakeUserRepo) FindByID(_ context.Context, id string) (*user.User, error) {
	for _, u := range repo.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepo) FindByEmail(_ context.Context, email string) (*user.User, error) {
	if u, ok := repo.byEmail[email]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepo) FindByExternalID(_ context.Context, _ user.Provider, _ string) (*user.User, error) {
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepo) Create(_ context.Context, _ *user.User) error    { return nil }
func (repo *fakeUserRepo) Update(_ context.Context, _ *user.User) error    { return nil }
func (repo *fakeUserRepo) LinkExternalID(_ context.Context, _ string, _ user.Provider, _ string) error {
	return nil
}
func (repo *fakeUserRepo) SetGlobalLogoutAt(_ context.Context, _ string, _ time.Time) error {
	return nil
}
func (repo *fakeUserRepo) GlobalLogoutAt(_ context.Context, _ string) (int64, bool, error) {
	return 0, false, nil
}

type fakeSessions struct {
	createdFor string
	revokedAll string
}

func (s *fakeSessions) CreateSession(_ context.Context, userID string, _ session.DeviceMetadata) (*session.TokenPair, error) {
	s.createdFor = userID
	return &session.TokenPair{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", ExpiresIn: 900}, nil
}

func (s *fakeSessions) RotateRefreshToken(_ context.Context, _ string, _ session.DeviceMetadata) (*session.TokenPair, error) {
	return &session.TokenPair{AccessToken: "at2", RefreshToken: "rt2", TokenType: "Bearer", ExpiresIn: 900}, nil
}

func (s *fakeSessions) RevokeSessionByRefreshToken(_ context.Context, _ string) error { return nil }

func (s *fakeSessions) RevokeAllUserSessions(_ context.Context, userID string) (int64, error) {
	s.revokedAll = userID
	return 2, nil
}

type noopAudit struct{}

func (noopAudit) Log(_ context.Context, _ audit.Entry) {}

func newService(t *testing.T) (*auth.Service, *fakeSessions) {
	t.Helper()
	hash, err := sec.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	repo := &fakeUserRepo{byEmail: map[string]*user.User{
		"candidate@talentgrid.dev": {ID: "user-1", Email: "candidate@talentgrid.dev", PasswordHash: hash},
		"federated@talentgrid.dev": {ID: "user-2", Email: "federated@talentgrid.dev"},
	}}
	sessions := &fakeSessions{}
	return auth.NewService(repo, sessions, noopAudit{}), sessions
}

// # Tests

/*
TestService_Login_Success verifies that valid credentials open a session.
*/
func TestService_Login_Success(t *testing.T) {
	service, sessions := newService(t)

	result, err := service.Login(context.Background(), auth.LoginInput{
		Email:    "candidate@talentgrid.dev",
		Password: "correct horse battery staple",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", sessions.createdFor)
	assert.Equal(t, "at", result.AccessToken)
	assert.Equal(t, "user-1", result.User.ID)
}

/*
TestService_Login_GenericFailure verifies that unknown accounts, wrong
passwords, and password-less federated accounts all fail with the same
response, preventing account enumeration.
*/
func TestService_Login_GenericFailure(t *testing.T) {
	service, _ := newService(t)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown_email", "nobody@talentgrid.dev", "whatever"},
		{"wrong_password", "candidate@talentgrid.dev", "incorrect"},
		{"federated_only_account", "federated@talentgrid.dev", "anything"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Login(context.Background(), auth.LoginInput{Email: tc.email, Password: tc.password})
			require.Error(t, err)
			appErr := apperr.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, "UNAUTHORIZED", appErr.Code)
			assert.Equal(t, "Invalid login credentials", appErr.Message)
		})
	}
}

/*
TestService_LogoutAll verifies that logout-everywhere delegates to the session
service for the authenticated user.
*/
func TestService_LogoutAll(t *testing.T) {
	service, sessions := newService(t)

	revoked, err := service.LogoutAll(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)
	assert.Equal(t, "user-1", sessions.revokedAll)
}
