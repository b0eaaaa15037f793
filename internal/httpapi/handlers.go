// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/access"
	"github.com/holomush/accountd/internal/auth"
)

// Auth operation labels for metrics.
const (
	opRegister      = "register"
	opVerifyOTP     = "verify_otp"
	opLoginPassword = "login_password"
	opRequestOTP    = "request_login_otp"
	opLoginOTP      = "login_otp"
	opSetPassword   = "set_password"
	opCreateUser    = "create_user"
	opIssueToken    = "issue_token"
)

const (
	msgCodeSent      = "verification code sent"
	msgLoginOK       = "login successful"
	msgLogoutOK      = "logout successful"
	msgRegisteredOK  = "registration complete"
	msgPasswordSet   = "password updated"
	msgUserCreatedOK = "user created"
)

type messageResponse struct {
	Message string `json:"message"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type otpRequest struct {
	OTP string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"`
}

type challengeResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

type userResponse struct {
	Message string        `json:"message,omitempty"`
	User    auth.Identity `json:"user"`
}

type isAdminResponse struct {
	IsAdmin bool `json:"isAdmin"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !a.decode(w, r, &req) {
		return
	}

	email, err := a.svc.RegisterEmail(r.Context(), req.Email)
	a.recordAuth(opRegister, err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if !a.setEmailChallenge(w, r, email) {
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{Message: msgCodeSent, Email: email})
}

func (a *API) handleVerifyRegistration(w http.ResponseWriter, r *http.Request) {
	email, _ := access.EmailFromContext(r.Context())

	var req otpRequest
	if !a.decode(w, r, &req) {
		return
	}

	id, err := a.svc.VerifyOTP(r.Context(), email, req.OTP)
	a.recordAuth(opVerifyOTP, err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if !a.startSession(w, r, id) {
		return
	}
	a.carrier(w, r).Discard(access.EmailToken)
	writeJSON(w, http.StatusCreated, userResponse{Message: msgRegisteredOK, User: id})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decode(w, r, &req) {
		return
	}

	id, err := a.svc.LoginWithPassword(r.Context(), req.Email, req.Password)
	a.recordAuth(opLoginPassword, err)
	if err != nil {
		a.writeLoginError(w, r, err)
		return
	}

	if !a.startSession(w, r, id) {
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: msgLoginOK, User: id})
}

func (a *API) handleRequestLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !a.decode(w, r, &req) {
		return
	}

	email, err := auth.NormalizeEmail(req.Email)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	// Unknown emails get the same answer as known ones; the code simply never arrives.
	err = a.svc.RequestLoginOTP(r.Context(), email)
	a.recordAuth(opRequestOTP, err)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		a.requestLogger(r).DebugContext(r.Context(), "login code requested for unknown email", "error", err)
	case err != nil:
		a.writeError(w, r, err)
		return
	}

	if !a.setEmailChallenge(w, r, email) {
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{Message: msgCodeSent, Email: email})
}

func (a *API) handleLoginOTP(w http.ResponseWriter, r *http.Request) {
	email, _ := access.EmailFromContext(r.Context())

	var req otpRequest
	if !a.decode(w, r, &req) {
		return
	}

	id, err := a.svc.LoginWithOTP(r.Context(), email, req.OTP)
	a.recordAuth(opLoginOTP, err)
	if err != nil {
		a.writeOTPLoginError(w, r, err)
		return
	}

	if !a.startSession(w, r, id) {
		return
	}
	a.carrier(w, r).Discard(access.EmailToken)
	writeJSON(w, http.StatusOK, userResponse{Message: msgLoginOK, User: id})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.carrier(w, r).Discard(access.SessionToken)
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLogoutOK})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	id, _ := access.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{User: id})
}

func (a *API) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	id, _ := access.IdentityFromContext(r.Context())

	var req passwordRequest
	if !a.decode(w, r, &req) {
		return
	}

	err := a.svc.SetPassword(r.Context(), id.ID, req.Password)
	a.recordAuth(opSetPassword, err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgPasswordSet})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	user, err := a.svc.GetUser(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleGetUserByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := a.svc.GetUserByEmail(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleIsAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	isAdmin, err := a.svc.IsAdmin(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, isAdminResponse{IsAdmin: isAdmin})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !a.decode(w, r, &req) {
		return
	}

	role, err := auth.ParseRole(req.Role)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var user auth.Identity
	if req.Password != "" {
		user, err = a.svc.CreateUserWithPassword(r.Context(), req.Email, role, req.Password)
	} else {
		user, err = a.svc.CreateUser(r.Context(), req.Email, role)
	}
	a.recordAuth(opCreateUser, err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	caller, _ := access.IdentityFromContext(r.Context())
	a.requestLogger(r).InfoContext(r.Context(), "user created by admin",
		"user_id", user.ID.String(),
		"role", string(user.Role),
		"created_by", caller.ID.String(),
	)
	writeJSON(w, http.StatusCreated, userResponse{Message: msgUserCreatedOK, User: user})
}

func (a *API) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		a.writeError(w, r, oops.Code("HTTPAPI_INVALID_ID").With("id", raw).Wrap(auth.ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request, id auth.Identity) bool {
	tok, err := a.tokens.IssueSessionToken(id)
	if err != nil {
		a.recordAuth(opIssueToken, err)
		a.writeError(w, r, err)
		return false
	}
	a.carrier(w, r).SetSession(tok)
	return true
}

func (a *API) setEmailChallenge(w http.ResponseWriter, r *http.Request, email string) bool {
	tok, err := a.tokens.IssueEmailToken(email)
	if err != nil {
		a.recordAuth(opIssueToken, err)
		a.writeError(w, r, err)
		return false
	}
	a.carrier(w, r).SetEmail(tok)
	return true
}
