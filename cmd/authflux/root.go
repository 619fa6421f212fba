// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the AuthFlux CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authflux",
		Short: "AuthFlux - player authentication gate for game servers",
		Long: `AuthFlux gates player presence behind registration and login:
players are frozen on connect, authenticate against a persisted credential
store, and are released to their saved position on success.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
