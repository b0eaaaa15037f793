// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/accountd/internal/auth"
)

// MockPendingRegistrationRepository is a mock of auth.PendingRegistrationRepository.
type MockPendingRegistrationRepository struct {
	mock.Mock
}

// NewMockPendingRegistrationRepository creates a mock that asserts its expectations on cleanup.
func NewMockPendingRegistrationRepository(t testingT) *MockPendingRegistrationRepository {
	m := &MockPendingRegistrationRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Upsert provides a mock function.
func (m *MockPendingRegistrationRepository) Upsert(ctx context.Context, email, otp string) error {
	args := m.Called(ctx, email, otp)
	return args.Error(0)
}

// GetForUpdate provides a mock function.
func (m *MockPendingRegistrationRepository) GetForUpdate(ctx context.Context, email string) (*auth.PendingRegistration, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.PendingRegistration), args.Error(1)
}

// MarkVerified provides a mock function.
func (m *MockPendingRegistrationRepository) MarkVerified(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
