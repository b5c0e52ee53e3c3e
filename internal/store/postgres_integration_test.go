// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

//go:build integration

package store_test

import (
	"context"
	"io"
	"log/slog"
	"net/url"

	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/itemvault/itemvault/internal/store"
	"github.com/itemvault/itemvault/internal/store/storetest"
)

var _ = Describe("Store provisioning", func() {
	var (
		ctx       context.Context
		container *storetest.Container
		baseURL   string
		logger    *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))

		var err error
		container, err = storetest.Start(ctx, "postgres")
		Expect(err).NotTo(HaveOccurred())
		baseURL, err = container.URL(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		container.Terminate(ctx)
	})

	withDatabase := func(name string) string {
		u, err := url.Parse(baseURL)
		Expect(err).NotTo(HaveOccurred())
		u.Path = "/" + name
		return u.String()
	}

	Describe("EnsureDatabase", func() {
		It("creates a missing database once", func() {
			target := withDatabase("itemvault_app")

			Expect(store.EnsureDatabase(ctx, target, logger)).To(Succeed())
			Expect(store.EnsureDatabase(ctx, target, logger)).To(Succeed())

			conn, err := pgx.Connect(ctx, target)
			Expect(err).NotTo(HaveOccurred())
			Expect(conn.Close(ctx)).To(Succeed())
		})
	})

	Describe("Open and Migrator", func() {
		It("provisions the schema and reports its version", func() {
			target := withDatabase("itemvault_schema")
			Expect(store.EnsureDatabase(ctx, target, logger)).To(Succeed())

			migrator, err := store.NewMigrator(target)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(migrator.Close)

			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())
			Expect(dirty).To(BeFalse())

			Expect(migrator.Up()).To(Succeed())
			Expect(migrator.Up()).To(Succeed())

			version, _, err = migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(1)))

			pool, err := store.Open(ctx, target, logger)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Close()

			var tables int
			err = pool.QueryRow(ctx, `
				SELECT count(*) FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name IN ('users', 'items')
			`).Scan(&tables)
			Expect(err).NotTo(HaveOccurred())
			Expect(tables).To(Equal(2))
		})
	})
})
