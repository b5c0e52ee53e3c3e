// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

//go:build integration

// Package storetest starts disposable PostgreSQL servers for integration
// tests.
package storetest

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container is a running PostgreSQL test server.
type Container struct {
	pg *postgres.PostgresContainer
}

// Start runs a postgres:16-alpine container with the given database name
// and waits until it accepts connections.
func Start(ctx context.Context, database string) (*Container, error) {
	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(database),
		postgres.WithUsername("itemvault"),
		postgres.WithPassword("itemvault"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Container{pg: pg}, nil
}

// URL returns a connection string for the container's database.
func (c *Container) URL(ctx context.Context) (string, error) {
	return c.pg.ConnectionString(ctx, "sslmode=disable")
}

// Terminate stops and removes the container.
func (c *Container) Terminate(ctx context.Context) {
	_ = c.pg.Terminate(ctx) //nolint:errcheck // best-effort test cleanup
}
