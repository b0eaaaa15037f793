// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package token issues and verifies the signed credentials used by accountd:
// session tokens carrying an auth.Identity and email-challenge tokens carrying
// an address whose ownership is being proven.
//
// Tokens are HS256 JWTs. They are self-contained; verification never consults storage.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
)

// Audiences keep a token of one kind from being accepted as the other.
const (
	AudienceSession = "session"
	AudienceEmail   = "email-challenge"
)

// Default lifetimes.
const (
	DefaultSessionTTL = 24 * time.Hour
	DefaultEmailTTL   = 15 * time.Minute
)

var validMethods = []string{jwt.SigningMethodHS256.Alg()}

// Issuer signs and verifies tokens with a single process-wide secret.
type Issuer struct {
	secret     []byte
	sessionTTL time.Duration
	emailTTL   time.Duration
	now        func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithSessionTTL sets the session token lifetime.
func WithSessionTTL(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.sessionTTL = d
		}
	}
}

// WithEmailTTL sets the email-challenge token lifetime.
func WithEmailTTL(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.emailTTL = d
		}
	}
}

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer creates an Issuer. The secret is copied and must not be empty.
func NewIssuer(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_SECRET_REQUIRED").Wrapf(auth.ErrInvalidInput, "signing secret is required")
	}
	i := &Issuer{
		secret:     append([]byte(nil), secret...),
		sessionTTL: DefaultSessionTTL,
		emailTTL:   DefaultEmailTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// SessionTTL returns the session token lifetime.
func (i *Issuer) SessionTTL() time.Duration { return i.sessionTTL }

// EmailTTL returns the email-challenge token lifetime.
func (i *Issuer) EmailTTL() time.Duration { return i.emailTTL }

type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IssueSessionToken signs a session token for id.
// The result is deterministic for a fixed secret and clock.
func (i *Issuer) IssueSessionToken(id auth.Identity) (string, error) {
	if id.ID == uuid.Nil || id.Email == "" || !id.Role.Valid() {
		return "", oops.Code("TOKEN_INVALID_IDENTITY").
			With("role", string(id.Role)).
			Wrap(auth.ErrInvalidInput)
	}

	now := i.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID.String(),
			Audience:  jwt.ClaimStrings{AudienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.sessionTTL)),
		},
		Email: id.Email,
		Role:  string(id.Role),
	}
	return i.sign(claims)
}

// IssueEmailToken signs an email-challenge token for email.
func (i *Issuer) IssueEmailToken(email string) (string, error) {
	if email == "" {
		return "", oops.Code("TOKEN_INVALID_EMAIL").Wrapf(auth.ErrInvalidInput, "email is required")
	}

	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		Audience:  jwt.ClaimStrings{AudienceEmail},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.emailTTL)),
	}
	return i.sign(claims)
}

// ParseSessionToken verifies a session token and returns its identity.
func (i *Issuer) ParseSessionToken(token string) (auth.Identity, error) {
	var claims sessionClaims
	if err := i.parse(token, AudienceSession, &claims); err != nil {
		return auth.Identity{}, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return auth.Identity{}, oops.Code("TOKEN_INVALID_SUBJECT").Wrap(auth.ErrInvalidToken)
	}
	role, err := auth.ParseRole(claims.Role)
	if err != nil {
		return auth.Identity{}, oops.Code("TOKEN_INVALID_ROLE").With("role", claims.Role).Wrap(auth.ErrInvalidToken)
	}
	if claims.Email == "" {
		return auth.Identity{}, oops.Code("TOKEN_INVALID_EMAIL").Wrap(auth.ErrInvalidToken)
	}

	return auth.Identity{ID: id, Email: claims.Email, Role: role}, nil
}

// ParseEmailToken verifies an email-challenge token and returns the address.
func (i *Issuer) ParseEmailToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	if err := i.parse(token, AudienceEmail, &claims); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", oops.Code("TOKEN_INVALID_SUBJECT").Wrap(auth.ErrInvalidToken)
	}
	return claims.Subject, nil
}

func (i *Issuer) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

func (i *Issuer) parse(token, audience string, claims jwt.Claims) error {
	if token == "" {
		return oops.Code("TOKEN_EMPTY").Wrap(auth.ErrInvalidToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(validMethods),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return mapJWTError(err, audience)
	}
	return nil
}

// mapJWTError collapses jwt library errors into ErrExpired or ErrInvalidToken.
func mapJWTError(err error, audience string) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return oops.Code("TOKEN_EXPIRED").With("audience", audience).Wrap(auth.ErrExpired)
	}
	return oops.Code("TOKEN_INVALID").
		With("audience", audience).
		With("reason", err.Error()).
		Wrap(auth.ErrInvalidToken)
}
