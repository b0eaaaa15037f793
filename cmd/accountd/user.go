// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/auth"
)

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	return newUserCmd(nil)
}

func newUserCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer user accounts",
	}

	var (
		email    string
		role     string
		password string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user directly, bypassing email verification",
		Long: `Create a user with the given role. Used to bootstrap the first
superadmin, who can then create further accounts over the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUserCreate(cmd, deps, email, role, password)
		},
	}
	create.Flags().StringVar(&email, "email", "", "email address (required)")
	create.Flags().StringVar(&role, "role", string(auth.RoleUser), "role: user, admin or superadmin")
	create.Flags().StringVar(&password, "password", "", "initial password (optional)")
	//nolint:errcheck // flag is defined above
	create.MarkFlagRequired("email")
	cmd.AddCommand(create)

	return cmd
}

func runUserCreate(cmd *cobra.Command, deps *Deps, email, roleName, password string) error {
	deps = deps.withDefaults()

	r, err := auth.ParseRole(roleName)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger := newLogger(cfg, deps)

	ctx := cmd.Context()
	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	svc, err := newAccountService(pool, cfg, deps, logger)
	if err != nil {
		return err
	}

	var id auth.Identity
	if password != "" {
		id, err = svc.CreateUserWithPassword(ctx, email, r, password)
	} else {
		id, err = svc.CreateUser(ctx, email, r)
	}
	if err != nil {
		return oops.With("operation", "create user").Wrap(err)
	}

	cmd.Printf("Created %s %s (%s)\n", id.Role, id.Email, id.ID)
	return nil
}
