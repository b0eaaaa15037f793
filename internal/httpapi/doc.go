// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the account operations over HTTP with JSON bodies.
//
// Session and email-challenge tokens travel in the JWT and EMAIL cookies.
// Every request gets a ULID request id (echoed in X-Request-ID), a server
// span, an access log line and Prometheus request metrics.
package httpapi
