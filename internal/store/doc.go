// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the accountd PostgreSQL schema and connection pool.
//
// Migrations are embedded SQL files applied with golang-migrate. Repositories
// live next to the domain they serve (internal/auth/postgres).
package store
