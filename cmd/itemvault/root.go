// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/itemvault/itemvault/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the ItemVault CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "itemvault",
		Short: "ItemVault - users, items and bearer-token auth over HTTP",
		Long: `ItemVault is a multi-user resource service: users own items and
authenticate with signed bearer tokens to manage them over an HTTP API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads the config file named by --config (or the default file
// under the XDG config directory), the environment and the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = config.DefaultFile()
	}
	//nolint:wrapcheck // config errors already carry codes
	return config.Load(path, cmd.Flags())
}
