// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/itemvault/itemvault/internal/account"
	"github.com/itemvault/itemvault/internal/account/postgres"
	"github.com/itemvault/itemvault/internal/auth"
	"github.com/itemvault/itemvault/internal/config"
	"github.com/itemvault/itemvault/internal/httpapi"
	"github.com/itemvault/itemvault/internal/observability"
	"github.com/itemvault/itemvault/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

const tracerName = "github.com/itemvault/itemvault"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API. The database is created and migrated on startup
unless disabled, and metrics and health probes are served on a separate
listener when metrics-addr is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps.withDefaults())
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// app holds the wired services of a running server.
type app struct {
	api *httpapi.Server
	obs *observability.Server
}

func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := prepareDatabase(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	a, err := buildApp(cfg, pool, logger)
	if err != nil {
		return err
	}

	apiErrCh, err := a.api.Start(cfg.HTTP.Addr)
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	if cfg.Metrics.Addr != "" {
		obsErrCh, err := a.obs.Start()
		if err != nil {
			stopServer(logger, "api", a.api.Stop)
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("ItemVault started")
	logger.Info("itemvault ready", "http_addr", a.api.Addr(), "metrics_addr", cfg.Metrics.Addr)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	stopServer(logger, "api", a.api.Stop)
	stopServer(logger, "observability", a.obs.Stop)
	logger.Info("shutdown complete")
	return nil
}

// prepareDatabase provisions the database according to cfg and opens the
// pool.
func prepareDatabase(ctx context.Context, cfg *config.Config, deps *Deps, logger *slog.Logger) (dbPool, error) {
	databaseURL := cfg.Database.ConnString()

	if cfg.Database.AutoCreate {
		if err := deps.EnsureDatabase(ctx, databaseURL, logger); err != nil {
			return nil, err
		}
	}
	if cfg.Database.AutoMigrate {
		if err := applyMigrations(databaseURL, deps, logger); err != nil {
			return nil, err
		}
	}
	return deps.OpenPool(ctx, databaseURL, logger)
}

func applyMigrations(databaseURL string, deps *Deps, logger *slog.Logger) error {
	migrator, err := deps.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrator(logger, migrator)

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	version, _, err := migrator.Version()
	if err != nil {
		return err
	}
	logger.Info("schema ready", "version", version)
	return nil
}

// buildApp wires repositories, services and servers over pool.
func buildApp(cfg *config.Config, pool dbPool, logger *slog.Logger) (*app, error) {
	accounts, err := account.NewService(account.ServiceConfig{
		Users:      postgres.NewUserRepository(pool),
		Items:      postgres.NewItemRepository(pool),
		Transactor: postgres.NewTransactor(pool),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := auth.NewArgon2idHasher(auth.HasherParams{
		Time:      cfg.Hasher.Time,
		MemoryKiB: cfg.Hasher.MemoryKiB,
		Threads:   cfg.Hasher.Threads,
	})
	if err != nil {
		return nil, err
	}

	tokenCfg := auth.TokenConfig{
		Algorithm: cfg.Auth.Algorithm,
		Lifetime:  cfg.Auth.TokenLifetime(),
		Logger:    logger,
	}
	if cfg.Auth.Symmetric() {
		tokenCfg.Secret = []byte(cfg.Auth.SecretKey)
	} else {
		keyPEM, err := os.ReadFile(cfg.Auth.PrivateKeyFile)
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", cfg.Auth.PrivateKeyFile).Wrap(err)
		}
		tokenCfg.PrivateKeyPEM = keyPEM
	}
	tokens, err := auth.NewTokenService(tokenCfg)
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(auth.ServiceConfig{
		Users:  accounts,
		Hasher: hasher,
		Tokens: tokens,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionResolver(tokens, accounts, logger)
	if err != nil {
		return nil, err
	}

	obs := observability.NewServer(cfg.Metrics.Addr, pool.Ping)
	api, err := httpapi.New(httpapi.Config{
		Auth:       authSvc,
		Sessions:   sessions,
		Metrics:    obs.Metrics(),
		Tracer:     otel.Tracer(tracerName),
		Logger:     logger,
		LoginRate:  cfg.HTTP.LoginRate,
		LoginBurst: cfg.HTTP.LoginBurst,
	})
	if err != nil {
		return nil, err
	}
	return &app{api: api, obs: obs}, nil
}

func stopServer(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a failure, so one
// failing listener shuts the whole process down. It returns when the server
// channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			errutil.LogError(slog.Default(), "server error, triggering shutdown", err, "server", serverName)
			cancel()
		}
	case <-ctx.Done():
	}
}
