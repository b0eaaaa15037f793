// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// dummyPasswordHash is verified when a user doesn't exist so the response
// time of a failed lookup matches that of a wrong password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ServiceConfig holds the dependencies of a Service.
type ServiceConfig struct {
	Users      UserRepository
	Pending    PendingRegistrationRepository
	Transactor Transactor
	Hasher     PasswordHasher
	OTP        OTPGenerator
	Sender     OTPSender
	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// Service provides registration and authentication operations.
type Service struct {
	users   UserRepository
	pending PendingRegistrationRepository
	tx      Transactor
	hasher  PasswordHasher
	otp     OTPGenerator
	sender  OTPSender
	logger  *slog.Logger
}

// NewService creates a new Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Users == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	case cfg.Pending == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("pending registration repository is required")
	case cfg.Transactor == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("transactor is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	case cfg.OTP == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("otp generator is required")
	case cfg.Sender == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("otp sender is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		users:   cfg.Users,
		pending: cfg.Pending,
		tx:      cfg.Transactor,
		hasher:  cfg.Hasher,
		otp:     cfg.OTP,
		sender:  cfg.Sender,
		logger:  logger,
	}, nil
}

// RegisterEmail starts registration by issuing an OTP for email.
// Repeating the call before verification replaces the OTP.
// Returns the normalized email.
func (s *Service) RegisterEmail(ctx context.Context, email string) (string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}

	code, err := s.otp.Generate()
	if err != nil {
		return "", oops.Code("AUTH_REGISTER_FAILED").With("operation", "generate otp").Wrap(err)
	}

	if err := s.pending.Upsert(ctx, email, code); err != nil {
		return "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "upsert pending registration").
			With("email", email).
			Wrap(err)
	}

	if err := s.sender.SendOTP(ctx, email, code, OTPPurposeRegistration); err != nil {
		return "", oops.Code("AUTH_OTP_DELIVERY_FAILED").With("email", email).Wrap(err)
	}

	return email, nil
}

// VerifyOTP completes registration. The pending row is flipped to verified
// and a User with RoleUser is created in the same transaction.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (Identity, error) {
	email = strings.TrimSpace(email)

	var identity Identity
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		reg, err := s.pending.GetForUpdate(ctx, email)
		if err != nil {
			return err
		}
		if reg.IsVerified {
			return oops.Code("AUTH_ALREADY_REGISTERED").With("email", email).Wrap(ErrAlreadyRegistered)
		}
		if !OTPMatches(reg.OTP, otp) {
			return oops.Code("AUTH_INVALID_OTP").With("email", email).Wrap(ErrInvalidOTP)
		}
		if err := s.pending.MarkVerified(ctx, email); err != nil {
			return err
		}

		user, err := NewUser(email, RoleUser)
		if err != nil {
			return err
		}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		identity = user.Identity()
		return nil
	})
	if err != nil {
		return Identity{}, oops.Code("AUTH_VERIFY_OTP_FAILED").With("email", email).Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", identity.ID.String())
	return identity, nil
}

// CreateUser provisions a user without a password or registration flow.
func (s *Service) CreateUser(ctx context.Context, email string, role Role) (Identity, error) {
	user, err := NewUser(email, role)
	if err != nil {
		return Identity{}, err
	}
	return s.createUser(ctx, user)
}

// CreateUserWithPassword provisions a user whose password is set from the start.
// The password is hashed before anything is written, and the user row carries
// the hash on insert, so a failure leaves no user behind.
func (s *Service) CreateUserWithPassword(ctx context.Context, email string, role Role, password string) (Identity, error) {
	user, err := NewUser(email, role)
	if err != nil {
		return Identity{}, err
	}
	if password == "" {
		return Identity{}, oops.Code("AUTH_EMPTY_PASSWORD").With("email", user.Email).Wrap(ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Identity{}, oops.Code("AUTH_CREATE_USER_FAILED").
			With("operation", "hash password").
			With("email", user.Email).
			Wrap(err)
	}
	user.PasswordHash = &hash

	return s.createUser(ctx, user)
}

func (s *Service) createUser(ctx context.Context, user *User) (Identity, error) {
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		return s.users.Create(ctx, user)
	})
	if err != nil {
		return Identity{}, oops.Code("AUTH_CREATE_USER_FAILED").With("email", user.Email).Wrap(err)
	}

	s.logger.InfoContext(ctx, "user created",
		"user_id", user.ID.String(),
		"role", user.Role.String(),
		"password_set", user.HasPassword(),
	)
	return user.Identity(), nil
}

// LoginWithPassword authenticates by email and password.
// A password is always verified, against a dummy hash when the user is
// unknown or has no password, so failures take the same time.
func (s *Service) LoginWithPassword(ctx context.Context, email, password string) (Identity, error) {
	email = strings.TrimSpace(email)

	user, lookupErr := s.users.GetByEmail(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return Identity{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	targetHash := dummyPasswordHash
	if user != nil && user.HasPassword() {
		targetHash = *user.PasswordHash
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)

	switch {
	case user == nil:
		return Identity{}, oops.Code("AUTH_USER_NOT_FOUND").With("email", email).Wrap(ErrNotFound)
	case !user.HasPassword():
		return Identity{}, oops.Code("AUTH_NO_PASSWORD_SET").With("user_id", user.ID.String()).Wrap(ErrNoPasswordSet)
	case verifyErr != nil:
		return Identity{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	case !valid:
		return Identity{}, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	if s.hasher.NeedsUpgrade(targetHash) {
		s.upgradeHash(ctx, user.ID, password)
	}

	return user.Identity(), nil
}

func (s *Service) upgradeHash(ctx context.Context, id uuid.UUID, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, id, newHash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"operation", "upgrade_hash",
			"user_id", id.String(),
			"error", err.Error(),
		)
	}
}

// RequestLoginOTP stores a fresh login OTP on the user and delivers it.
func (s *Service) RequestLoginOTP(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return oops.Code("AUTH_REQUEST_OTP_FAILED").With("email", email).Wrap(err)
	}

	code, err := s.otp.Generate()
	if err != nil {
		return oops.Code("AUTH_REQUEST_OTP_FAILED").With("operation", "generate otp").Wrap(err)
	}

	if err := s.users.SetOTP(ctx, user.ID, &code); err != nil {
		return oops.Code("AUTH_REQUEST_OTP_FAILED").
			With("operation", "store otp").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	if err := s.sender.SendOTP(ctx, email, code, OTPPurposeLogin); err != nil {
		return oops.Code("AUTH_OTP_DELIVERY_FAILED").With("email", email).Wrap(err)
	}
	return nil
}

// LoginWithOTP authenticates with a code from RequestLoginOTP.
// The code is cleared on success so it cannot be replayed.
func (s *Service) LoginWithOTP(ctx context.Context, email, otp string) (Identity, error) {
	email = strings.TrimSpace(email)

	var identity Identity
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByEmailForUpdate(ctx, email)
		if err != nil {
			return err
		}
		if !OTPMatches(user.OTP, otp) {
			return oops.Code("AUTH_INVALID_OTP").With("user_id", user.ID.String()).Wrap(ErrInvalidOTP)
		}
		if err := s.users.SetOTP(ctx, user.ID, nil); err != nil {
			return err
		}
		identity = user.Identity()
		return nil
	})
	if err != nil {
		return Identity{}, oops.Code("AUTH_LOGIN_OTP_FAILED").With("email", email).Wrap(err)
	}
	return identity, nil
}

// IsAdmin reports whether the user holds an administrative role.
func (s *Service) IsAdmin(ctx context.Context, id uuid.UUID) (bool, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return false, oops.Code("AUTH_IS_ADMIN_FAILED").With("user_id", id.String()).Wrap(err)
	}
	return user.Role.IsAdmin(), nil
}

// SetPassword hashes password with a fresh salt and replaces any stored hash.
func (s *Service) SetPassword(ctx context.Context, id uuid.UUID, password string) error {
	if password == "" {
		return oops.Code("AUTH_EMPTY_PASSWORD").With("user_id", id.String()).Wrap(ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("AUTH_SET_PASSWORD_FAILED").
			With("operation", "hash password").
			With("user_id", id.String()).
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return oops.Code("AUTH_SET_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", id.String()).
			Wrap(err)
	}
	return nil
}

// GetUser returns the public identity for id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (Identity, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return Identity{}, oops.Code("AUTH_GET_USER_FAILED").With("user_id", id.String()).Wrap(err)
	}
	return user.Identity(), nil
}

// GetUserByEmail returns the public identity for email.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (Identity, error) {
	email = strings.TrimSpace(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return Identity{}, oops.Code("AUTH_GET_USER_FAILED").With("email", email).Wrap(err)
	}
	return user.Identity(), nil
}
