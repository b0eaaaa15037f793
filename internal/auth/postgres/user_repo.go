// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
)

const selectUserColumns = `
		SELECT id::text, email, password_hash, otp, role::text, created_at, updated_at
		FROM users`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (id, email, password_hash, otp, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.OTP,
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("USER_ALREADY_EXISTS").
			With("email", user.Email).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(classify(err))
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, selectUserColumns+`
		WHERE id = $1
	`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (exact match).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getByEmail(ctx, email, "")
}

// GetByEmailForUpdate retrieves a user by email and locks the row until the
// surrounding transaction ends.
func (r *UserRepository) GetByEmailForUpdate(ctx context.Context, email string) (*auth.User, error) {
	return r.getByEmail(ctx, email, " FOR UPDATE")
}

func (r *UserRepository) getByEmail(ctx context.Context, email, lock string) (*auth.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, selectUserColumns+`
		WHERE email = $1`+lock, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// SetOTP stores the login OTP, or clears it when otp is nil.
func (r *UserRepository) SetOTP(ctx context.Context, id uuid.UUID, otp *string) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET otp = $2, updated_at = now()
		WHERE id = $1
	`, id.String(), otp)
	if err != nil {
		return oops.Code("USER_SET_OTP_FAILED").
			With("operation", "update otp").
			With("id", id.String()).
			Wrap(classify(err))
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, id.String(), passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(classify(err))
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// pgx.ErrNoRows is returned unwrapped for callers to handle.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr        string
		email        string
		passwordHash *string
		otp          *string
		roleStr      string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&idStr, &email, &passwordHash, &otp, &roleStr, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(classify(err))
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	role, err := auth.ParseRole(roleStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ROLE").
			With("operation", "parse user role").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		OTP:          otp,
		Role:         role,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
