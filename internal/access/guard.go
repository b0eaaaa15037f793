// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/pkg/errutil"
)

// Carrier names.
const (
	SessionToken = "JWT"
	EmailToken   = "EMAIL"
)

// Carrier holds the tokens presented by a caller.
type Carrier interface {
	// Token returns the named token and whether it was presented.
	Token(name string) (string, bool)
	// Discard tells the caller to drop the named token.
	Discard(name string)
}

// TokenVerifier verifies tokens. token.Issuer implements it.
type TokenVerifier interface {
	ParseSessionToken(token string) (auth.Identity, error)
	ParseEmailToken(token string) (string, error)
}

// Guard verifies carrier tokens.
type Guard struct {
	tokens TokenVerifier
	logger *slog.Logger
}

// NewGuard creates a Guard. A nil logger uses slog.Default.
func NewGuard(tokens TokenVerifier, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{tokens: tokens, logger: logger}
}

// Session verifies the session token and returns the caller's identity.
func (g *Guard) Session(ctx context.Context, c Carrier) (auth.Identity, error) {
	raw, ok := c.Token(SessionToken)
	if !ok || raw == "" {
		return auth.Identity{}, unauthorized(SessionToken, "missing")
	}

	id, err := g.tokens.ParseSessionToken(raw)
	if err != nil {
		g.reject(ctx, c, SessionToken, err)
		return auth.Identity{}, unauthorized(SessionToken, reason(err))
	}
	return id, nil
}

// Email verifies the email-challenge token and returns the address it proves.
func (g *Guard) Email(ctx context.Context, c Carrier) (string, error) {
	raw, ok := c.Token(EmailToken)
	if !ok || raw == "" {
		return "", unauthorized(EmailToken, "missing")
	}

	email, err := g.tokens.ParseEmailToken(raw)
	if err != nil {
		g.reject(ctx, c, EmailToken, err)
		return "", unauthorized(EmailToken, reason(err))
	}
	return email, nil
}

func (g *Guard) reject(ctx context.Context, c Carrier, name string, err error) {
	c.Discard(name)
	g.logger.DebugContext(ctx, "token rejected", "carrier", name, "error", err)
}

// RequireRole reports auth.ErrForbidden unless id's role satisfies required.
func RequireRole(id auth.Identity, required auth.Role) error {
	if id.Role.Satisfies(required) {
		return nil
	}
	return oops.Code("ACCESS_FORBIDDEN").
		With("user_id", id.ID.String()).
		With("role", string(id.Role)).
		With("required", string(required)).
		Wrap(auth.ErrForbidden)
}

func unauthorized(name, why string) error {
	return oops.Code("ACCESS_UNAUTHORIZED").
		With("carrier", name).
		With("reason", why).
		Wrap(auth.ErrUnauthorized)
}

func reason(err error) string {
	if code := errutil.Code(err); code != "" {
		return code
	}
	return "invalid"
}
