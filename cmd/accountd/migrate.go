// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage the accountd schema in the PostgreSQL database.
Without a subcommand, all pending migrations are applied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, migrateUp)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, migrateUp)
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all account data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all account data; pass --yes to confirm")
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m SchemaMigrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return oops.With("operation", "roll back migrations").Wrap(err)
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m SchemaMigrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return oops.With("operation", "read schema version").Wrap(err)
				}
				if dirty {
					cmd.Printf("%d (dirty)\n", v)
					return nil
				}
				cmd.Printf("%d\n", v)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, printMigrationStatus)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Record VERSION as current without running migrations",
		Long: `Record VERSION as the current schema version and clear the dirty flag.
Use only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m SchemaMigrator) error {
				if err := m.Force(v); err != nil {
					return oops.With("operation", "force schema version").Wrap(err)
				}
				cmd.Printf("Forced schema version %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, deps *Deps, fn func(*cobra.Command, SchemaMigrator) error) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	m, err := deps.MigratorFactory(cfg.DatabaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()

	return fn(cmd, m)
}

func migrateUp(cmd *cobra.Command, m SchemaMigrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func printMigrationStatus(cmd *cobra.Command, m SchemaMigrator) error {
	st, err := m.Status()
	if err != nil {
		return oops.With("operation", "read migration status").Wrap(err)
	}

	state := "clean"
	if st.Dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", st.Version, state)

	for _, v := range st.Applied {
		cmd.Printf("  [applied] %s\n", migrationLabel(v))
	}
	for _, v := range st.Pending {
		cmd.Printf("  [pending] %s\n", migrationLabel(v))
	}
	return nil
}

func migrationLabel(v uint) string {
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return strconv.FormatUint(uint64(v), 10)
	}
	return name
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer, got %q", s)
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative, got %d", v)
	}
	return v, nil
}
