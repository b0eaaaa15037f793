// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository manages user persistence.
// Lookups return an error wrapping ErrNotFound when no row matches.
type UserRepository interface {
	// Create stores a new user.
	// Returns an error wrapping ErrAlreadyExists if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByEmail retrieves a user by email (exact match).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByEmailForUpdate retrieves a user by email and locks the row.
	// Only meaningful inside Transactor.InTransaction.
	GetByEmailForUpdate(ctx context.Context, email string) (*User, error)

	// SetOTP stores or, when otp is nil, clears the login OTP.
	SetOTP(ctx context.Context, id uuid.UUID, otp *string) error

	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// PendingRegistrationRepository manages email OTP challenges.
type PendingRegistrationRepository interface {
	// Upsert creates the challenge or replaces its OTP while unverified.
	// Returns an error wrapping ErrAlreadyRegistered if the email is verified.
	Upsert(ctx context.Context, email, otp string) error

	// GetForUpdate retrieves a challenge by email and locks the row.
	GetForUpdate(ctx context.Context, email string) (*PendingRegistration, error)

	// MarkVerified flips is_verified to true.
	MarkVerified(ctx context.Context, email string) error
}

// Transactor runs a function inside a database transaction.
// Repository calls made with the context passed to fn join the transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
