// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

// Package account implements the ownership-aware user and item model.
//
// # Domain Types
//
// A User owns zero or more Items; an Item belongs to exactly one User.
// Users are unique by email and, when set, by username.
//
// # Persistence
//
// UserRepository and ItemRepository describe the store contract. Uniqueness
// and owner existence are enforced by the store at write time; the Service
// pre-checks them only to report precise errors. Deleting a user removes its
// items first, inside one transaction obtained from the Transactor.
//
// # Errors
//
// Failures wrap ErrNotFound or ErrConflict and can be matched with errors.Is.
// Invalid input is reported as *ValidationError.
package account
