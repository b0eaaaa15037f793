// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"log/slog"
	"math/big"
	"strconv"

	"github.com/samber/oops"
)

// OTP bounds. Codes are six decimal digits with no leading zero.
const (
	otpMin = 100000
	otpMax = 999999

	// DefaultDevOTP is the fixed code issued outside production.
	DefaultDevOTP = "123456"
)

// OTPPurpose identifies which flow an OTP was issued for.
type OTPPurpose string

// OTP purposes.
const (
	OTPPurposeRegistration OTPPurpose = "registration"
	OTPPurposeLogin        OTPPurpose = "login"
)

// OTPGenerator produces one-time passcodes.
type OTPGenerator interface {
	Generate() (string, error)
}

// RandomOTPGenerator draws codes uniformly from [100000, 999999] using crypto/rand.
type RandomOTPGenerator struct{}

// Generate returns a new random code.
func (RandomOTPGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", oops.Code("AUTH_OTP_GENERATION_FAILED").Wrap(err)
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// FixedOTPGenerator always returns the same code. Used in development and tests.
type FixedOTPGenerator struct {
	Code string
}

// Generate returns the fixed code, or DefaultDevOTP when none is set.
func (g FixedOTPGenerator) Generate() (string, error) {
	if g.Code == "" {
		return DefaultDevOTP, nil
	}
	return g.Code, nil
}

// OTPMatches compares a presented code with the stored one in constant time.
// A nil stored code never matches.
func OTPMatches(stored *string, presented string) bool {
	if stored == nil || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) == 1
}

// OTPSender delivers a code to the owner of an email address.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string, purpose OTPPurpose) error
}

// LogOTPSender records that a code was issued without delivering it.
// The code itself is never logged; outside production the fixed development
// code is the one to use.
type LogOTPSender struct {
	Logger *slog.Logger
}

// SendOTP logs the issuance at info level.
func (s LogOTPSender) SendOTP(ctx context.Context, email, _ string, purpose OTPPurpose) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "otp issued",
		"email", email,
		"purpose", string(purpose),
	)
	return nil
}
