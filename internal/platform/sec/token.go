// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer. It is pure: no storage, no I/O, only crypto and encoding.
package sec

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/talentgrid/identity/internal/platform/constants"
	"github.com/talentgrid/identity/pkg/uuid"
)

// ErrInvalidToken is the single failure mode of every Validate* method.
//
// # Why one error?
//
// Signature failures, expiry, a wrong token class, and malformed payloads are
// deliberately indistinguishable to callers. Differentiating them would hand
// an attacker an oracle for probing token internals.
var ErrInvalidToken = errors.New("sec: invalid token")

// AccessClaims represents the payload embedded inside a JWT access token.
//
// # Why custom claims?
//
// By embedding the email and roles directly inside the JWT, the request
// authentication path can reconstruct the active user context WITHOUT querying
// the database on every single API request.
type AccessClaims struct {
	jwt.RegisteredClaims

	Email string   `json:"email"`
	Roles []string `json:"roles"`

	// ClientName identifies the first-party application the token was minted
	// for during an SSO exchange. Empty for direct logins.
	ClientName string `json:"client_name,omitempty"`

	// MustChangePassword forces the frontend into a password-change flow
	// before any other action.
	MustChangePassword bool `json:"must_change_password,omitempty"`
}

// RefreshClaims represents the payload embedded inside a JWT refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims

	// TokenType is always "refresh". A refresh token presented where an access
	// token is expected (or vice versa) fails validation.
	TokenType string `json:"typ"`

	// TokenFamily ties the token to its rotation lineage. It is stable across
	// rotations and changes only on a fresh login.
	TokenFamily string `json:"family"`
}

// ServiceClaims represents the payload of a machine-to-machine token.
type ServiceClaims struct {
	jwt.RegisteredClaims

	TokenType  string   `json:"typ"`
	ClientName string   `json:"client_name"`
	Scopes     []string `json:"scopes"`
}

// Token type markers for non-access tokens.
const (
	tokenTypeRefresh = "refresh"
	tokenTypeService = "service"
)

// TokenService handles generation and verification of JWT tokens using HS256.
//
// Each token class is signed with its own secret, so a token can never be
// replayed across classes even if the class marker were forged.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	serviceSecret []byte
	issuer        string
}

// NewTokenService creates a new TokenService with per-class signing secrets.
func NewTokenService(accessSecret, refreshSecret, serviceSecret, issuer string) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		serviceSecret: []byte(serviceSecret),
		issuer:        issuer,
	}
}

// # Issuance

// AccessTokenInput carries the optional fields embedded in an access token.
type AccessTokenInput struct {
	UserID             string
	Email              string
	Roles              []string
	ClientName         string
	MustChangePassword bool
}

// IssueAccessToken creates a signed access token for the given user.
//
// The roles slice is embedded as-is; callers apply [ApplyUnassignedRolePolicy]
// beforehand so the fallback stays an explicit, named policy.
func (service *TokenService) IssueAccessToken(input AccessTokenInput) (string, error) {
	currentTime := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.UserID,
			Issuer:    service.issuer,
			ID:        uuid.New(),
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(constants.AccessTokenTTL)),
		},
		Email:              input.Email,
		Roles:              input.Roles,
		ClientName:         input.ClientName,
		MustChangePassword: input.MustChangePassword,
	}

	return service.sign(claims, service.accessSecret)
}

// IssueRefreshToken creates a signed refresh token bound to a token family.
func (service *TokenService) IssueRefreshToken(userID, tokenFamily string) (string, error) {
	currentTime := time.Now()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			ID:        uuid.New(),
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(constants.RefreshTokenTTL)),
		},
		TokenType:   tokenTypeRefresh,
		TokenFamily: tokenFamily,
	}

	return service.sign(claims, service.refreshSecret)
}

// IssueServiceToken creates a signed machine-to-machine token carrying an
// explicit scope list.
func (service *TokenService) IssueServiceToken(clientID, clientName string, scopes []string) (string, error) {
	currentTime := time.Now()
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			Issuer:    service.issuer,
			ID:        uuid.New(),
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(constants.ServiceTokenTTL)),
		},
		TokenType:  tokenTypeService,
		ClientName: clientName,
		Scopes:     scopes,
	}

	return service.sign(claims, service.serviceSecret)
}

// sign serializes and signs claims with the given per-class secret.
func (service *TokenService) sign(claims jwt.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", ErrInvalidToken
	}
	return signedToken, nil
}

// # Validation

// ValidateAccessToken checks signature and validity of an access token.
// Any failure — signature, expiry, malformed payload — returns [ErrInvalidToken].
func (service *TokenService) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := service.parse(tokenString, claims, service.accessSecret); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefreshToken checks signature, validity, and the token class marker
// of a refresh token.
func (service *TokenService) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := service.parse(tokenString, claims, service.refreshSecret); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenTypeRefresh || claims.TokenFamily == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateServiceToken checks signature, validity, and the token class marker
// of a service token.
func (service *TokenService) ValidateServiceToken(tokenString string) (*ServiceClaims, error) {
	claims := &ServiceClaims{}
	if err := service.parse(tokenString, claims, service.serviceSecret); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenTypeService {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// parse verifies the HMAC signature and standard claims against one secret.
func (service *TokenService) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})

	if err != nil || !token.Valid {
		return ErrInvalidToken
	}

	return nil
}

// # Token Families

// GenerateTokenFamily mints an opaque id shared by every refresh token
// descending from one login. Fresh logins get fresh families.
func GenerateTokenFamily() string {
	return uuid.New()
}
