// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/itemvault/itemvault/internal/account"
	"github.com/itemvault/itemvault/internal/account/postgres"
)

var _ = Describe("Account repositories", func() {
	var (
		ctx   context.Context
		users *postgres.UserRepository
		items *postgres.ItemRepository
		svc   *account.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		users = postgres.NewUserRepository(testPool)
		items = postgres.NewItemRepository(testPool)

		var err error
		svc, err = account.NewService(account.ServiceConfig{
			Users:      users,
			Items:      items,
			Transactor: postgres.NewTransactor(testPool),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	newUser := func(email string) *account.User {
		u, err := svc.CreateUser(ctx, &account.User{Email: email, PasswordHash: "hash", IsActive: true})
		Expect(err).NotTo(HaveOccurred())
		return u
	}

	Describe("unique constraints", func() {
		It("rejects a duplicate email written past the pre-check", func() {
			newUser("dup@example.com")

			err := users.Create(ctx, &account.User{Email: "dup@example.com", PasswordHash: "hash", IsActive: true})
			Expect(err).To(MatchError(account.ErrConflict))
		})

		It("keeps exactly one user under concurrent registration", func() {
			var wg sync.WaitGroup
			errs := make([]error, 8)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.CreateUser(ctx, &account.User{
						Email: "race@example.com", PasswordHash: "hash", IsActive: true,
					})
				}(i)
			}
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				if err == nil {
					succeeded++
					continue
				}
				Expect(err).To(MatchError(account.ErrConflict))
			}
			Expect(succeeded).To(Equal(1))
		})

		It("allows many users without a username", func() {
			newUser("a@example.com")
			newUser("b@example.com")
		})
	})

	Describe("item ownership", func() {
		It("maps a missing owner to not found", func() {
			err := items.Create(ctx, &account.Item{Title: "orphan", OwnerID: 999})
			Expect(err).To(MatchError(account.ErrNotFound))

			all, err := items.List(ctx, account.DefaultPage())
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})
	})

	Describe("DeleteUser", func() {
		for _, n := range []int{0, 1, 5} {
			It(fmt.Sprintf("removes the user and its %d items", n), func() {
				owner := newUser("owner@example.com")
				other := newUser("other@example.com")
				for i := range n {
					_, err := svc.CreateItem(ctx, owner.ID, account.ItemInput{Title: fmt.Sprintf("item %d", i)})
					Expect(err).NotTo(HaveOccurred())
				}
				kept, err := svc.CreateItem(ctx, other.ID, account.ItemInput{Title: "kept"})
				Expect(err).NotTo(HaveOccurred())

				deleted, err := svc.DeleteUser(ctx, owner.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(deleted.Items).To(HaveLen(n))

				_, err = users.GetByID(ctx, owner.ID)
				Expect(err).To(MatchError(account.ErrNotFound))

				remaining, err := items.List(ctx, account.DefaultPage())
				Expect(err).NotTo(HaveOccurred())
				Expect(remaining).To(HaveLen(1))
				Expect(remaining[0].ID).To(Equal(kept.ID))
			})
		}

		It("refuses to delete a user that still owns items outside the cascade", func() {
			owner := newUser("owner@example.com")
			_, err := svc.CreateItem(ctx, owner.ID, account.ItemInput{Title: "lamp"})
			Expect(err).NotTo(HaveOccurred())

			_, err = users.Delete(ctx, owner.ID)
			Expect(err).To(HaveOccurred())

			_, err = users.GetByID(ctx, owner.ID)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
