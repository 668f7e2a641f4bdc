// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Strata CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strata",
		Short: "Strata - session-based authentication service",
		Long: `Strata is the authentication backend of the Strata starter kit:
email/password accounts, sliding-expiration sessions, email verification,
and password resets over a JSON HTTP API.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
