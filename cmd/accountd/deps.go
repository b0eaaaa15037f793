// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/auth/postgres"
	"github.com/holomush/accountd/internal/httpapi"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/store"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// PoolFactory opens the database pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, url string) (DBPool, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (SchemaMigrator, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// HTTPServerFactory creates the API server.
	// Default: httpapi.NewServer
	HTTPServerFactory func(addr string, handler http.Handler, logger *slog.Logger) HTTPServer

	// OTPSender delivers one-time passcodes.
	// Default: auth.LogOTPSender writing to the service logger
	OTPSender auth.OTPSender

	// LogWriter receives service logs.
	// Default: os.Stderr
	LogWriter io.Writer
}

// DBPool wraps the methods used from *pgxpool.Pool.
type DBPool interface {
	postgres.Pool
	store.Pinger
	Close()
}

// SchemaMigrator wraps the methods used from store.Migrator.
type SchemaMigrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// HTTPServer wraps the methods used from httpapi.Server.
type HTTPServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, url string) (DBPool, error) {
			pool, err := store.Connect(ctx, url)
			if err != nil {
				//nolint:wrapcheck // store errors carry their own codes
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (SchemaMigrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				//nolint:wrapcheck // store errors carry their own codes
				return nil, err
			}
			return m, nil
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.HTTPServerFactory == nil {
		out.HTTPServerFactory = func(addr string, handler http.Handler, logger *slog.Logger) HTTPServer {
			return httpapi.NewServer(addr, handler, logger)
		}
	}
	if out.LogWriter == nil {
		out.LogWriter = os.Stderr
	}
	return &out
}
