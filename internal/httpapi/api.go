// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/accountd/internal/access"
	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/observability"
)

const tracerName = "github.com/holomush/accountd/internal/httpapi"

// AccountService is the subset of auth.Service served over HTTP.
type AccountService interface {
	RegisterEmail(ctx context.Context, email string) (string, error)
	VerifyOTP(ctx context.Context, email, otp string) (auth.Identity, error)
	CreateUser(ctx context.Context, email string, role auth.Role) (auth.Identity, error)
	CreateUserWithPassword(ctx context.Context, email string, role auth.Role, password string) (auth.Identity, error)
	LoginWithPassword(ctx context.Context, email, password string) (auth.Identity, error)
	RequestLoginOTP(ctx context.Context, email string) error
	LoginWithOTP(ctx context.Context, email, otp string) (auth.Identity, error)
	IsAdmin(ctx context.Context, id uuid.UUID) (bool, error)
	SetPassword(ctx context.Context, id uuid.UUID, password string) error
	GetUser(ctx context.Context, id uuid.UUID) (auth.Identity, error)
	GetUserByEmail(ctx context.Context, email string) (auth.Identity, error)
}

// TokenIssuer issues and verifies tokens. token.Issuer implements it.
type TokenIssuer interface {
	access.TokenVerifier
	IssueSessionToken(id auth.Identity) (string, error)
	IssueEmailToken(email string) (string, error)
}

// Config wires the API.
type Config struct {
	Service AccountService
	Tokens  TokenIssuer
	Cookies access.CookieOptions
	// Metrics may be nil.
	Metrics *observability.Metrics
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// API serves the HTTP endpoints.
type API struct {
	svc     AccountService
	tokens  TokenIssuer
	guard   *access.Guard
	cookies access.CookieOptions
	metrics *observability.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	router  *mux.Router
}

// New builds the API and its routes.
func New(cfg Config) (*API, error) {
	if cfg.Service == nil {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").Errorf("account service is required")
	}
	if cfg.Tokens == nil {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").Errorf("token issuer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	a := &API{
		svc:     cfg.Service,
		tokens:  cfg.Tokens,
		guard:   access.NewGuard(cfg.Tokens, logger),
		cookies: cfg.Cookies,
		metrics: cfg.Metrics,
		logger:  logger,
		tracer:  tp.Tracer(tracerName),
	}
	a.router = a.routes()
	return a, nil
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *API) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.withRequestID, a.observe)
	r.NotFoundHandler = a.withRequestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "route not found"})
	}))
	r.MethodNotAllowedHandler = a.withRequestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, messageResponse{Message: "method not allowed"})
	}))

	// Routes stay on the root router: mux answers 405 only for routes it owns directly.
	r.HandleFunc("/v1/auth/register", a.handleRegister).Methods(http.MethodPost)
	r.Handle("/v1/auth/register/verify", a.requireEmail(a.handleVerifyRegistration)).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login/otp/request", a.handleRequestLoginOTP).Methods(http.MethodPost)
	r.Handle("/v1/auth/login/otp", a.requireEmail(a.handleLoginOTP)).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/logout", a.handleLogout).Methods(http.MethodPost)
	r.Handle("/v1/auth/session", a.requireSession(auth.RoleUser, a.handleSession)).Methods(http.MethodGet)

	r.Handle("/v1/users", a.requireSession(auth.RoleSuperadmin, a.handleCreateUser)).Methods(http.MethodPost)
	r.Handle("/v1/users/me/password", a.requireSession(auth.RoleUser, a.handleSetPassword)).Methods(http.MethodPut)
	r.Handle("/v1/users/id/{id}", a.requireSession(auth.RoleAdmin, a.handleGetUser)).Methods(http.MethodGet)
	r.Handle("/v1/users/email/{email}", a.requireSession(auth.RoleAdmin, a.handleGetUserByEmail)).Methods(http.MethodGet)
	r.Handle("/v1/users/{id}/admin", a.requireSession(auth.RoleAdmin, a.handleIsAdmin)).Methods(http.MethodGet)

	return r
}

func (a *API) carrier(w http.ResponseWriter, r *http.Request) *access.CookieCarrier {
	return access.NewCookieCarrier(w, r, a.cookies)
}

// requireSession admits callers holding a session token whose role satisfies required.
func (a *API) requireSession(required auth.Role, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.guard.Session(r.Context(), a.carrier(w, r))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := access.RequireRole(id, required); err != nil {
			a.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(access.WithIdentity(r.Context(), id)))
	})
}

// requireEmail admits callers holding an email-challenge token.
func (a *API) requireEmail(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, err := a.guard.Email(r.Context(), a.carrier(w, r))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(access.WithEmail(r.Context(), email)))
	})
}
