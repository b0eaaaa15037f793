// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// maxEmailLen matches the width of the email columns.
const maxEmailLen = 225

// Identity is the public projection of a User.
// It is the payload of a session token and is never persisted.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}

// User is a registered account.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash *string
	OTP          *string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a User with a fresh id and validated fields.
func NewUser(email string, role Role) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, oops.Code("AUTH_INVALID_ROLE").With("role", string(role)).Wrap(ErrInvalidInput)
	}

	now := time.Now().UTC()
	return &User{
		ID:        uuid.New(),
		Email:     normalized,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Identity returns the public view of the user.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}

// HasPassword reports whether a password hash is stored.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// PendingRegistration is an email OTP challenge issued before a User exists.
type PendingRegistration struct {
	Email      string
	OTP        *string
	IsVerified bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NormalizeEmail trims surrounding whitespace and checks that the result is a bare address.
// Case is preserved; emails compare as stored.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", oops.Code("AUTH_INVALID_EMAIL").Wrapf(ErrInvalidInput, "email is required")
	}
	if len(email) > maxEmailLen {
		return "", oops.Code("AUTH_INVALID_EMAIL").With("length", len(email)).Wrap(ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", oops.Code("AUTH_INVALID_EMAIL").With("email", email).Wrap(ErrInvalidInput)
	}
	return email, nil
}
