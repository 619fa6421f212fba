// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package main

import (
	"encoding/json"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	authredis "github.com/authflux/authflux/internal/auth/redis"
	"github.com/authflux/authflux/internal/config"
	"github.com/authflux/authflux/internal/store"
)

// StoreStatus holds the reachability report for the credential store.
type StoreStatus struct {
	Engine           string `json:"engine"`
	Reachable        bool   `json:"reachable"`
	MigrationVersion uint   `json:"migration_version,omitempty"`
	MigrationDirty   bool   `json:"migration_dirty,omitempty"`
	Error            string `json:"error,omitempty"`
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check credential store reachability",
		Long:  `Connect to the configured credential store and report its reachability and, for postgres, the migration version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	status := queryStoreStatus(cmd, cfg)

	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}

	if status.Reachable {
		cmd.Printf("store: %s reachable\n", status.Engine)
		if status.Engine == "postgres" {
			cmd.Printf("migration version: %d dirty: %t\n", status.MigrationVersion, status.MigrationDirty)
		}
	} else {
		cmd.Printf("store: %s unreachable: %s\n", status.Engine, status.Error)
	}
	return nil
}

func queryStoreStatus(cmd *cobra.Command, cfg config.Config) StoreStatus {
	status := StoreStatus{Engine: cfg.Database.Engine}
	ctx := cmd.Context()

	switch cfg.Database.Engine {
	case "postgres":
		pool, err := store.Connect(ctx, cfg.Database.URL)
		if err != nil {
			status.Error = err.Error()
			return status
		}
		defer pool.Close()
		status.Reachable = true

		migrator, err := store.NewMigrator(cfg.Database.URL)
		if err != nil {
			status.Error = err.Error()
			return status
		}
		defer func() { _ = migrator.Close() }()

		version, dirty, err := migrator.Version()
		if err != nil {
			status.Error = err.Error()
			return status
		}
		status.MigrationVersion = version
		status.MigrationDirty = dirty

	case "redis":
		repo, err := authredis.New(ctx, cfg.Redis.URL)
		if err != nil {
			status.Error = err.Error()
			return status
		}
		defer func() { _ = repo.Close() }()
		status.Reachable = true

	default:
		status.Error = "unsupported engine"
	}

	return status
}
