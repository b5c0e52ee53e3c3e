// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/itemvault/itemvault/internal/store"
)

// dbPool is the subset of *pgxpool.Pool used by the server.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// schemaMigrator is the subset of *store.Migrator used by the commands.
type schemaMigrator interface {
	Up() error
	Version() (uint, bool, error)
	PendingMigrations() ([]uint, error)
	Close() error
}

// Deps contains injectable dependencies for the serve and migrate commands.
// Nil fields use their default implementations.
type Deps struct {
	// EnsureDatabase creates the target database when it is missing.
	// Default: store.EnsureDatabase
	EnsureDatabase func(ctx context.Context, url string, logger *slog.Logger) error

	// OpenPool connects to the database.
	// Default: store.Open
	OpenPool func(ctx context.Context, url string, logger *slog.Logger) (dbPool, error)

	// NewMigrator creates a schema migrator.
	// Default: store.NewMigrator
	NewMigrator func(url string) (schemaMigrator, error)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.EnsureDatabase == nil {
		out.EnsureDatabase = store.EnsureDatabase
	}
	if out.OpenPool == nil {
		out.OpenPool = func(ctx context.Context, url string, logger *slog.Logger) (dbPool, error) {
			pool, err := store.Open(ctx, url, logger)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.NewMigrator == nil {
		out.NewMigrator = func(url string) (schemaMigrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return &out
}
