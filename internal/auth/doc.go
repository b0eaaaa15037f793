// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements account registration and authentication for accountd.
//
// # Domain Types
//
// User is the durable identity. PendingRegistration holds the email OTP challenge
// issued before a User exists. Identity is the public projection of a User that is
// returned to callers and embedded in session tokens; password hashes and OTP codes
// never leave this package and its repositories.
//
// Users should be created with NewUser, which validates the email and role.
//
// # Service
//
// Service is the operation catalog:
//   - RegisterEmail / VerifyOTP - email OTP registration
//   - LoginWithPassword - password login
//   - RequestLoginOTP / LoginWithOTP - passwordless login
//   - CreateUser - admin provisioning
//   - IsAdmin, SetPassword, GetUser, GetUserByEmail
//
// Every failure wraps one of the sentinel errors in errors.go so callers can
// match with errors.Is regardless of the oops code attached.
package auth
