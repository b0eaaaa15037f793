// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/config"
	"github.com/holomush/accountd/internal/xdg"
)

const serviceName = "accountd"

// NewRootCmd creates the root command for the accountd CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accountd",
		Short: "accountd - user accounts and authentication",
		Long: `accountd manages user accounts: email one-time passcode registration,
password and passcode login, signed session tokens, and user/admin/superadmin roles.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (YAML, default $XDG_CONFIG_HOME/accountd/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newUserCmd(deps))

	return cmd
}

// loadConfig resolves configuration for cmd from its file, the environment and its flags.
// Without --config the XDG config file is read if present.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if def, ok := xdg.DefaultConfigFile(); ok {
			path = def
		}
	}
	//nolint:wrapcheck // config errors carry their own codes
	return config.Load(config.Source{Path: path, Flags: cmd.Flags()})
}
