// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authd/internal/config"
	"github.com/holomush/authd/internal/store"
)

// SchemaMigrator is the migration surface used by the migrate command.
type SchemaMigrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Status() (store.Status, error)
	Force(version int) error
	Close() error
}

var _ SchemaMigrator = (*store.Migrator)(nil)

// migratorFactory opens a migrator. Tests replace it.
var migratorFactory = func(url string) (SchemaMigrator, error) {
	return store.NewMigrator(url)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: `Apply, roll back and inspect the PostgreSQL schema. The database URL
comes from --database-url, AUTHD_DATABASE_URL, DATABASE_URL or the config file.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateForceCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m SchemaMigrator) error {
				if steps > 0 {
					if err := m.Steps(steps); err != nil {
						return err
					}
				} else if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations applied")
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "apply at most this many migrations (0 applies all)")
	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Long:  `Roll back the last migration, or every migration with --all. Rolling back drops tables and their data.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m SchemaMigrator) error {
				if all {
					if err := m.Down(); err != nil {
						return err
					}
					cmd.Println("All migrations rolled back")
					return nil
				}
				if err := m.Steps(-1); err != nil {
					return err
				}
				cmd.Println("Rolled back one migration")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")
	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m SchemaMigrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				printStatus(cmd, st)
				return nil
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running SQL",
		Long:  `Set the recorded schema version and clear the dirty flag. Use only after repairing a failed migration by hand.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m SchemaMigrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", version)
				return nil
			})
		},
	}
}

func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative")
	}
	return v, nil
}

// withMigrator resolves the database URL, opens a migrator and closes it
// after fn returns.
func withMigrator(cmd *cobra.Command, fn func(SchemaMigrator) error) error {
	cfg, err := config.Load(config.Options{File: resolveConfigFile(), Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "database-url").
			Errorf("a database URL is required for migrations")
	}

	m, err := migratorFactory(cfg.DatabaseURL)
	if err != nil {
		return oops.Code("MIGRATION_OPEN_FAILED").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	return fn(m)
}

func printStatus(cmd *cobra.Command, st store.Status) {
	state := "clean"
	if st.Dirty {
		state = "dirty"
	}
	cmd.Printf("Schema version: %d (%s)\n", st.Version, state)
	for _, v := range st.Applied {
		cmd.Println(formatMigration("applied", v))
	}
	for _, v := range st.Pending {
		cmd.Println(formatMigration("pending", v))
	}
	if st.Dirty {
		cmd.Println("A migration failed part-way. Repair the schema, then run 'authd migrate force VERSION'.")
	}
}

func formatMigration(state string, v uint) string {
	name := store.MigrationName(v)
	if name == "" {
		name = fmt.Sprintf("%06d", v)
	}
	return fmt.Sprintf("  [%s] %s", state, name)
}
