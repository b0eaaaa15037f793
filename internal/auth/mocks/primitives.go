// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/accountd/internal/auth"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade provides a mock function.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

// MockOTPGenerator is a mock of auth.OTPGenerator.
type MockOTPGenerator struct {
	mock.Mock
}

// NewMockOTPGenerator creates a mock that asserts its expectations on cleanup.
func NewMockOTPGenerator(t testingT) *MockOTPGenerator {
	m := &MockOTPGenerator{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Generate provides a mock function.
func (m *MockOTPGenerator) Generate() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

// MockOTPSender is a mock of auth.OTPSender.
type MockOTPSender struct {
	mock.Mock
}

// NewMockOTPSender creates a mock that asserts its expectations on cleanup.
func NewMockOTPSender(t testingT) *MockOTPSender {
	m := &MockOTPSender{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// SendOTP provides a mock function.
func (m *MockOTPSender) SendOTP(ctx context.Context, email, code string, purpose auth.OTPPurpose) error {
	args := m.Called(ctx, email, code, purpose)
	return args.Error(0)
}

// MockTransactor is a mock of auth.Transactor.
type MockTransactor struct {
	mock.Mock
}

// NewMockTransactor creates a mock that asserts its expectations on cleanup.
func NewMockTransactor(t testingT) *MockTransactor {
	m := &MockTransactor{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// InTransaction records the call and, if the expectation returns nil,
// runs fn with the caller's context and returns its error.
func (m *MockTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

// RunInline expects any number of InTransaction calls that run fn directly.
func (m *MockTransactor) RunInline() *MockTransactor {
	m.On("InTransaction", mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}
