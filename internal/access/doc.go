// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package access guards operations that need a verified caller.
//
// A Guard reads a token from a Carrier, verifies it, and yields either the
// caller's auth.Identity (session token) or a proven email address
// (email-challenge token). Every failure is reported as auth.ErrUnauthorized
// and the offending token is discarded from the carrier. RequireRole then
// applies the role hierarchy and reports auth.ErrForbidden.
package access
