// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

// Package store opens and provisions the PostgreSQL database that backs the
// account repositories.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// maintenanceDatabase is the database connected to when creating others.
const maintenanceDatabase = "postgres"

// Startup connection retry policy.
var (
	connectRetries uint64 = 5
	connectBackoff        = 500 * time.Millisecond
)

// Open creates a connection pool for databaseURL and waits until the server
// answers a ping, retrying with exponential backoff. The caller owns the
// returned pool and must Close it.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	err = withRetry(ctx, logger, "ping database", pool.Ping)
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			With("database", cfg.ConnConfig.Database).
			Wrap(err)
	}
	logger.InfoContext(ctx, "database connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database)
	return pool, nil
}

// EnsureDatabase creates the database named in databaseURL if it does not
// exist, using the maintenance database on the same server.
func EnsureDatabase(ctx context.Context, databaseURL string, logger *slog.Logger) error {
	cfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	name := cfg.Database
	if name == "" || name == maintenanceDatabase {
		return nil
	}

	admin := cfg.Copy()
	admin.Database = maintenanceDatabase

	var conn *pgx.Conn
	err = withRetry(ctx, logger, "connect maintenance database", func(ctx context.Context) error {
		c, err := pgx.ConnectConfig(ctx, admin)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("database", maintenanceDatabase).Wrap(err)
	}
	defer conn.Close(ctx) //nolint:errcheck // closing a maintenance connection

	created, err := createDatabaseIfMissing(ctx, conn, name)
	if err != nil {
		return err
	}
	if created {
		logger.InfoContext(ctx, "database created", "database", name)
	}
	return nil
}

// adminConn is the subset of *pgx.Conn used for provisioning.
type adminConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func createDatabaseIfMissing(ctx context.Context, conn adminConn, name string) (bool, error) {
	var exists bool
	err := conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("DB_CREATE_FAILED").With("database", name).With("operation", "check database").Wrap(err)
	}
	if exists {
		return false, nil
	}

	// CREATE DATABASE cannot take parameters.
	_, err = conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.DuplicateDatabase {
			return false, nil
		}
		return false, oops.Code("DB_CREATE_FAILED").With("database", name).With("operation", "create database").Wrap(err)
	}
	return true, nil
}

// withRetry calls fn until it succeeds, the retry budget is spent, or ctx is
// done.
func withRetry(ctx context.Context, logger *slog.Logger, operation string, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(connectRetries, retry.NewExponential(connectBackoff))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := fn(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready",
				"operation", operation,
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
