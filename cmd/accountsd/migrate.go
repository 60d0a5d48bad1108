// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aetherforge/accounts/internal/config"
	"github.com/aetherforge/accounts/internal/store"
)

// MigratorOps is the migrator surface the migrate command uses.
type MigratorOps interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// newMigrator is swapped out in tests.
var newMigrator = func(url string) (MigratorOps, error) {
	return store.NewMigrator(url)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply all pending database migrations against the PostgreSQL database.
With --down, roll back every migration instead, dropping all data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, down)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations (destructive)")

	return cmd
}

func runMigrate(cmd *cobra.Command, down bool) error {
	cfg, err := config.Load(resolveConfigPath(), cmd.Flags())
	if err != nil {
		return err
	}

	migrator, err := newMigrator(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() {
		_ = migrator.Close()
	}()

	if down {
		cmd.Println("Rolling back migrations...")
		if err := migrator.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback completed")
		return nil
	}

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	if dirty {
		cmd.Println("Warning: schema version is dirty; manual repair needed")
	}
	cmd.Printf("Migrations completed, schema version %d\n", version)
	return nil
}
