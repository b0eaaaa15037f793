// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
)

// PendingRegistrationRepository implements auth.PendingRegistrationRepository using PostgreSQL.
type PendingRegistrationRepository struct {
	pool Pool
}

// NewPendingRegistrationRepository creates a new PendingRegistrationRepository.
func NewPendingRegistrationRepository(pool Pool) *PendingRegistrationRepository {
	return &PendingRegistrationRepository{pool: pool}
}

// Upsert creates the challenge or replaces its OTP in a single statement.
// Verified rows are left untouched, which surfaces as no returned row.
func (r *PendingRegistrationRepository) Upsert(ctx context.Context, email, otp string) error {
	var stored string
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO pending_registrations (email, otp, is_verified, created_at, updated_at)
		VALUES ($1, $2, false, now(), now())
		ON CONFLICT (email) DO UPDATE
			SET otp = EXCLUDED.otp, updated_at = now()
			WHERE NOT pending_registrations.is_verified
		RETURNING email
	`, email, otp).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("PENDING_ALREADY_VERIFIED").
			With("email", email).
			Wrap(auth.ErrAlreadyRegistered)
	}
	if err != nil {
		return oops.Code("PENDING_UPSERT_FAILED").
			With("operation", "upsert pending registration").
			With("email", email).
			Wrap(classify(err))
	}
	return nil
}

// GetForUpdate retrieves a challenge and locks the row until the surrounding transaction ends.
func (r *PendingRegistrationRepository) GetForUpdate(ctx context.Context, email string) (*auth.PendingRegistration, error) {
	var reg auth.PendingRegistration
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT email, otp, is_verified, created_at, updated_at
		FROM pending_registrations
		WHERE email = $1
		FOR UPDATE
	`, email).Scan(&reg.Email, &reg.OTP, &reg.IsVerified, &reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PENDING_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PENDING_GET_FAILED").
			With("operation", "get pending registration").
			With("email", email).
			Wrap(classify(err))
	}
	return &reg, nil
}

// MarkVerified flips is_verified to true.
func (r *PendingRegistrationRepository) MarkVerified(ctx context.Context, email string) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE pending_registrations SET is_verified = true, updated_at = now()
		WHERE email = $1
	`, email)
	if err != nil {
		return oops.Code("PENDING_MARK_VERIFIED_FAILED").
			With("operation", "mark verified").
			With("email", email).
			Wrap(classify(err))
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PENDING_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ auth.PendingRegistrationRepository = (*PendingRegistrationRepository)(nil)
