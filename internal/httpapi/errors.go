// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/pkg/errutil"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

type errorMapping struct {
	target  error
	status  int
	message string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{auth.ErrStorageUnavailable, http.StatusServiceUnavailable, "service unavailable"},
	{auth.ErrInvalidInput, http.StatusBadRequest, "invalid input"},
	{auth.ErrNotFound, http.StatusNotFound, "not found"},
	{auth.ErrAlreadyExists, http.StatusConflict, "user already exists"},
	{auth.ErrAlreadyRegistered, http.StatusConflict, "email already registered"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid email or password"},
	{auth.ErrInvalidOTP, http.StatusUnauthorized, "invalid or expired code"},
	{auth.ErrNoPasswordSet, http.StatusBadRequest, "no password set for this account"},
	{auth.ErrExpired, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrForbidden, http.StatusForbidden, "forbidden"},
}

// StatusFor maps an error to its HTTP status and client-safe message.
func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := StatusFor(err)
	a.respondError(w, r, err, status, message)
}

// writeLoginError does not reveal whether the email is registered.
func (a *API) writeLoginError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrNotFound) {
		err = oops.Code("HTTPAPI_LOGIN_REJECTED").Wrapf(auth.ErrInvalidCredentials, "%s", err.Error())
	}
	a.writeError(w, r, err)
}

// writeOTPLoginError answers an unknown email like a wrong code.
func (a *API) writeOTPLoginError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrNotFound) {
		err = oops.Code("HTTPAPI_LOGIN_REJECTED").Wrapf(auth.ErrInvalidOTP, "%s", err.Error())
	}
	a.writeError(w, r, err)
}

func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error, status int, message string) {
	logger := a.requestLogger(r)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, messageResponse{Message: message})
}

func (a *API) recordAuth(operation string, err error) {
	outcome := observability.OutcomeSuccess
	if err != nil {
		outcome = observability.OutcomeRejected
		if status, _ := StatusFor(err); status >= http.StatusInternalServerError {
			outcome = observability.OutcomeError
		}
	}
	a.metrics.RecordAuth(operation, outcome)
}

// decode reads a JSON body into dst, writing a 400 on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.respondError(w, r, oops.Code("HTTPAPI_BAD_BODY").Wrap(err), http.StatusBadRequest, "invalid request body")
		return false
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		a.respondError(w, r, oops.Code("HTTPAPI_BAD_BODY").Errorf("trailing data after JSON body"), http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(body)
}
