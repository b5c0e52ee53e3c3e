// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/itemvault/itemvault/internal/config"
	"github.com/itemvault/itemvault/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|version]",
		Short:     "Apply or inspect the database schema",
		Long:      `Apply all pending schema migrations (up, the default) or print the current schema version.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			return runMigrateWithDeps(cmd, action, deps.withDefaults())
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runMigrateWithDeps(cmd *cobra.Command, action string, deps *Deps) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateLogging(); err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	logger, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	databaseURL := cfg.Database.ConnString()

	if action == "up" && cfg.Database.AutoCreate {
		if err := deps.EnsureDatabase(cmd.Context(), databaseURL, logger); err != nil {
			return err
		}
	}

	migrator, err := deps.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrator(logger, migrator)

	switch action {
	case "up":
		return migrateUp(cmd, migrator)
	case "version":
		return printVersion(cmd, migrator)
	default:
		return oops.Code("INVALID_ARGUMENT").With("action", action).Errorf("unknown migrate action %q", action)
	}
}

func migrateUp(cmd *cobra.Command, m schemaMigrator) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("Schema is up to date")
		return nil
	}
	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return printVersion(cmd, m)
}

func printVersion(cmd *cobra.Command, m schemaMigrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		cmd.Println("Schema version: none")
	} else {
		name, nameErr := store.MigrationName(version)
		if nameErr != nil || name == "" {
			name = "unknown"
		}
		state := ""
		if dirty {
			state = " (dirty)"
		}
		cmd.Printf("Schema version: %d %s%s\n", version, name, state)
	}

	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		versions := make([]string, 0, len(pending))
		for _, v := range pending {
			versions = append(versions, fmt.Sprint(v))
		}
		cmd.Printf("Pending: %s\n", strings.Join(versions, ", "))
	}
	return nil
}

func closeMigrator(logger *slog.Logger, m schemaMigrator) {
	if err := m.Close(); err != nil {
		logger.Warn("failed to close migrator", "error", err)
	}
}
