// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stratakit/strata/internal/config"
	"github.com/stratakit/strata/internal/store"
)

// NewMigrateCmd creates the migrate subcommand with its actions.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long:  `Apply, roll back, and inspect database schema migrations.`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStepsCmd())
	cmd.AddCommand(newMigrateVersionCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

// withMigrator loads config, opens a Migrator, runs fn, and closes it.
func withMigrator(fn func(*store.Migrator) error) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (config file or DATABASE_URL)")
	}

	m, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		_ = m.Close() //nolint:errcheck // best effort close after migration action
	}()

	return fn(m)
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *store.Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (destructive)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *store.Migrator) error {
				cmd.Println("Rolling back all migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rollback completed")
				return nil
			})
		},
	}
}

func newMigrateStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps <n>",
		Short: "Apply n migrations (negative rolls back)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").Errorf("steps argument must be an integer, got %q", args[0])
			}
			return withMigrator(func(m *store.Migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				cmd.Printf("Applied %d migration step(s)\n", n)
				return nil
			})
		},
	}
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *store.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if version == 0 {
					cmd.Println("No migrations applied")
					return nil
				}
				cmd.Printf("Version: %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the migration version without running migrations",
		Long: `Set the migration version without running migrations. Use only to
recover from a dirty state after manually fixing the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").Errorf("version argument must be an integer, got %q", args[0])
			}
			return withMigrator(func(m *store.Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced version to %d\n", v)
				return nil
			})
		},
	}
}
