// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// Error taxonomy. Repositories and the service wrap these with oops codes.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a user with the same email already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyRegistered is returned when the email has completed OTP verification.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOTP is returned when an OTP is missing or does not match.
	ErrInvalidOTP = errors.New("invalid otp")

	// ErrNoPasswordSet is returned on password login for users without a password.
	ErrNoPasswordSet = errors.New("no password set")

	// ErrInvalidToken is returned for tokens with a bad signature or structure.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpired is returned for tokens whose expiry has passed.
	ErrExpired = errors.New("token expired")

	// ErrUnauthorized is returned by guards when no valid credential was presented.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned by guards when the caller's role is insufficient.
	ErrForbidden = errors.New("forbidden")

	// ErrStorageUnavailable is returned when the credential store cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidInput is returned for malformed emails, roles, or empty passwords.
	ErrInvalidInput = errors.New("invalid input")
)
