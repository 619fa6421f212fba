// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authflux/authflux/internal/auth"
	authpg "github.com/authflux/authflux/internal/auth/postgres"
	authredis "github.com/authflux/authflux/internal/auth/redis"
	"github.com/authflux/authflux/internal/config"
	"github.com/authflux/authflux/internal/gate"
	"github.com/authflux/authflux/internal/logging"
	"github.com/authflux/authflux/internal/messages"
	"github.com/authflux/authflux/internal/observability"
	"github.com/authflux/authflux/internal/store"
	"github.com/authflux/authflux/internal/telnet"
	"github.com/authflux/authflux/internal/world"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication gate server",
		Long: `Start the game host listener, the authentication gate, and the
observability endpoints. Every session flag in the credential store is
cleared at startup so no session survives a restart.`,
		RunE: runServe,
	}

	defaults := config.Default()
	cmd.Flags().String("listen.addr", defaults.Listen.Addr, "game host listen address")
	cmd.Flags().String("metrics.addr", defaults.Metrics.Addr, "observability listen address")
	cmd.Flags().String("database.engine", defaults.Database.Engine, "credential store engine (postgres or redis)")
	cmd.Flags().String("database.url", defaults.Database.URL, "postgres connection URL")
	cmd.Flags().String("redis.url", defaults.Redis.URL, "redis connection URL")
	cmd.Flags().String("log.format", defaults.Log.Format, "log format (text or json)")
	cmd.Flags().String("log.level", defaults.Log.Level, "log level")
	cmd.Flags().String("messages.file", "", "message catalog YAML file")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("authflux", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logger := slog.Default()

	catalog := messages.Default()
	if cfg.Messages.File != "" {
		catalog, err = messages.Load(cfg.Messages.File)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accounts, closeStore, err := openAccountStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// No session survives a restart.
	if err := accounts.ResetAllSessions(ctx); err != nil {
		return oops.Code("STARTUP_FAILED").
			With("operation", "reset sessions").
			Wrap(err)
	}
	logger.Info("cleared stale sessions")

	policy := auth.PasswordPolicy{
		MinLength: cfg.Password.MinLength,
		MaxLength: cfg.Password.MaxLength,
	}
	service, err := auth.NewServiceWithLogger(accounts, auth.NewArgon2idHasher(), policy, logger)
	if err != nil {
		return err
	}
	tracker, err := auth.NewTracker(accounts)
	if err != nil {
		return err
	}

	spawn := world.Position{
		World: cfg.Spawn.World,
		X:     cfg.Spawn.X,
		Y:     cfg.Spawn.Y,
		Z:     cfg.Spawn.Z,
		Yaw:   cfg.Spawn.Yaw,
		Pitch: cfg.Spawn.Pitch,
	}

	var ready atomic.Bool
	obsServer := observability.NewServer(cfg.Metrics.Addr, ready.Load)
	obsErrCh, err := obsServer.Start()
	if err != nil {
		return oops.Code("STARTUP_FAILED").
			With("operation", "start observability server").
			Wrap(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			logger.Error("observability server shutdown failed", "error", stopErr)
		}
	}()

	registry := telnet.NewRegistry()
	coordinator, err := gate.New(gate.Options{
		Host:     registry,
		Service:  service,
		Tracker:  tracker,
		Accounts: accounts,
		Catalog:  catalog,
		Policy:   policy,
		Spawn:    spawn,
		// The reference host loads a single world.
		Resolver: world.ResolverFunc(func(name string) bool { return name == spawn.World }),
		Metrics:  obsServer.Metrics(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	server := telnet.NewServer(cfg.Listen.Addr, registry, coordinator, spawn)

	go func() {
		if obsErr, ok := <-obsErrCh; ok && obsErr != nil {
			logger.Error("observability server failed", "error", obsErr)
			stop()
		}
	}()

	ready.Store(true)
	err = server.Run(ctx)
	ready.Store(false)
	if err != nil {
		return oops.Code("SERVE_FAILED").Wrap(err)
	}

	logger.Info("server stopped")
	return nil
}

// openAccountStore builds the configured account repository and returns it
// with its cleanup function.
func openAccountStore(ctx context.Context, cfg config.Config) (auth.AccountRepository, func(), error) {
	switch cfg.Database.Engine {
	case "postgres":
		pool, err := store.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		return authpg.NewAccountRepository(pool), pool.Close, nil

	case "redis":
		repo, err := authredis.New(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("failed to close redis client", "error", closeErr)
			}
		}
		return repo, closeFn, nil

	default:
		return nil, nil, oops.Code("CONFIG_INVALID").
			With("field", "database.engine").
			Errorf("unsupported engine %q", cfg.Database.Engine)
	}
}
