// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/holomush/accountd/internal/auth"
)

// memStore is an in-memory implementation of the auth repositories.
// Transactions are serialized and restore a snapshot on error.
type memStore struct {
	txMu sync.Mutex

	mu      sync.Mutex
	users   map[uuid.UUID]auth.User
	pending map[string]auth.PendingRegistration
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[uuid.UUID]auth.User),
		pending: make(map[string]auth.PendingRegistration),
	}
}

func (s *memStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	users := maps.Clone(s.users)
	pending := maps.Clone(s.pending)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users, s.pending = users, pending
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return auth.ErrAlreadyExists
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memStore) GetByEmailForUpdate(ctx context.Context, email string) (*auth.User, error) {
	return s.GetByEmail(ctx, email)
}

func (s *memStore) SetOTP(_ context.Context, id uuid.UUID, otp *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.OTP = otp
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return nil
}

func (s *memStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = &passwordHash
	s.users[id] = u
	return nil
}

// pendingRepo adapts memStore to auth.PendingRegistrationRepository.
type pendingRepo struct{ *memStore }

func (p pendingRepo) Upsert(_ context.Context, email, otp string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, ok := p.pending[email]
	if ok && reg.IsVerified {
		return auth.ErrAlreadyRegistered
	}
	now := time.Now()
	if !ok {
		reg = auth.PendingRegistration{Email: email, CreatedAt: now}
	}
	reg.OTP = &otp
	reg.UpdatedAt = now
	p.pending[email] = reg
	return nil
}

func (p pendingRepo) GetForUpdate(_ context.Context, email string) (*auth.PendingRegistration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, ok := p.pending[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &reg, nil
}

func (p pendingRepo) MarkVerified(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, ok := p.pending[email]
	if !ok {
		return auth.ErrNotFound
	}
	reg.IsVerified = true
	p.pending[email] = reg
	return nil
}

func (p pendingRepo) otpFor(email string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if reg, ok := p.pending[email]; ok && reg.OTP != nil {
		return *reg.OTP
	}
	return ""
}
