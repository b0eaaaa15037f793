// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/access"
	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/auth/postgres"
	"github.com/holomush/accountd/internal/config"
	"github.com/holomush/accountd/internal/httpapi"
	"github.com/holomush/accountd/internal/logging"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/internal/token"
	"github.com/holomush/accountd/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the accountd HTTP API together with the metrics and health
endpoints. Requires a PostgreSQL database and a token signing secret.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, deps)
		},
	}
}

func newLogger(cfg config.Config, deps *Deps) *slog.Logger {
	return logging.New(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.LogFormat,
		Level:   logging.ParseLevel(cfg.LogLevel),
	}, deps.LogWriter)
}

// otpGenerator issues a fixed code outside production so flows can be driven by hand.
func otpGenerator(cfg config.Config) auth.OTPGenerator {
	if cfg.IsProduction() {
		return auth.RandomOTPGenerator{}
	}
	code := cfg.DevOTP
	if code == "" {
		code = auth.DefaultDevOTP
	}
	return auth.FixedOTPGenerator{Code: code}
}

func newAccountService(pool postgres.Pool, cfg config.Config, deps *Deps, logger *slog.Logger) (*auth.Service, error) {
	sender := deps.OTPSender
	if sender == nil {
		sender = auth.LogOTPSender{Logger: logger}
	}
	//nolint:wrapcheck // auth errors carry their own codes
	return auth.NewService(auth.ServiceConfig{
		Users:      postgres.NewUserRepository(pool),
		Pending:    postgres.NewPendingRegistrationRepository(pool),
		Transactor: postgres.NewTransactor(pool),
		Hasher:     auth.NewArgon2idHasher(),
		OTP:        otpGenerator(cfg),
		Sender:     sender,
		Logger:     logger,
	})
}

// runServeWithDeps starts the API with injectable dependencies and blocks
// until a signal arrives, ctx is cancelled or a server fails.
func runServeWithDeps(ctx context.Context, cfg config.Config, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.ValidateServe(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger := newLogger(cfg, deps)
	slog.SetDefault(logger)

	logger.Info("starting accountd",
		"environment", cfg.Environment,
		"http_addr", cfg.HTTPAddr,
		"log_format", cfg.LogFormat,
	)

	if cfg.IsProduction() && deps.OTPSender == nil {
		logger.Warn("no OTP delivery configured, one-time passcodes are issued but never sent")
	}

	if cfg.AutoMigrate {
		if err := runAutoMigration(cfg.DatabaseURL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	svc, err := newAccountService(pool, cfg, deps, logger)
	if err != nil {
		return err
	}

	issuer, err := token.NewIssuer([]byte(cfg.JWTSecret),
		token.WithSessionTTL(cfg.SessionTTL),
		token.WithEmailTTL(cfg.EmailTokenTTL),
	)
	if err != nil {
		return oops.With("operation", "create token issuer").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, store.ReadinessCheck(pool, store.DefaultPingTimeout))
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		metrics = obsServer.Metrics()
	}

	api, err := httpapi.New(httpapi.Config{
		Service: svc,
		Tokens:  issuer,
		Cookies: access.CookieOptions{
			Production: cfg.IsProduction(),
			Domain:     cfg.CookieDomain,
			SessionTTL: issuer.SessionTTL(),
			EmailTTL:   issuer.EmailTTL(),
		},
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		stopServer(obsServer, "observability", logger)
		return err
	}

	httpServer := deps.HTTPServerFactory(cfg.HTTPAddr, api, logger)
	httpErrCh, err := httpServer.Start()
	if err != nil {
		stopServer(obsServer, "observability", logger)
		return oops.Code("HTTP_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, httpErrCh, "http", logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("accountd started")
	logger.Info("accountd ready", "http_addr", httpServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopServer(httpServer, "http", logger)
	stopServer(obsServer, "observability", logger)

	logger.Info("shutdown complete")
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

func stopServer(s stopper, name string, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			errutil.LogError(logger, "server error, triggering shutdown", oops.With("server", serverName).Wrap(err))
			cancel()
		}
	case <-ctx.Done():
	}
}

// runAutoMigration applies pending migrations before serving.
func runAutoMigration(url string, factory func(string) (SchemaMigrator, error), logger *slog.Logger) error {
	migrator, err := factory(url)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator, connection may leak", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("database migrations applied")
	return nil
}
