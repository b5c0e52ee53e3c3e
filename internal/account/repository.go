// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package account

import "context"

// UserRepository manages user persistence.
type UserRepository interface {
	// GetByID retrieves a user by id.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves a user by exact email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByUsername retrieves a user by exact username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// List returns a page of users ordered by id.
	List(ctx context.Context, page Page) ([]*User, error)

	// Create inserts the user and overwrites it with the stored record.
	// Returns an ErrConflict error when the email or username is taken.
	Create(ctx context.Context, user *User) error

	// Update replaces all mutable fields of the user with the given id and
	// overwrites it with the stored record.
	Update(ctx context.Context, user *User) error

	// UpdatePasswordHash replaces only the password hash.
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error

	// LockForDelete locks the user row until the surrounding transaction
	// ends, blocking concurrent inserts of items owned by it.
	LockForDelete(ctx context.Context, id int64) error

	// Delete removes the user and returns its last stored state.
	Delete(ctx context.Context, id int64) (*User, error)
}

// ItemRepository manages item persistence.
type ItemRepository interface {
	// GetByID retrieves an item by id.
	GetByID(ctx context.Context, id int64) (*Item, error)

	// List returns a page of items ordered by id.
	List(ctx context.Context, page Page) ([]*Item, error)

	// ListByOwner returns all items owned by a user.
	ListByOwner(ctx context.Context, ownerID int64) ([]*Item, error)

	// ListByOwners returns all items owned by any of the given users.
	ListByOwners(ctx context.Context, ownerIDs []int64) ([]*Item, error)

	// Create inserts the item and overwrites it with the stored record.
	// Returns an ErrNotFound error when the owner does not exist.
	Create(ctx context.Context, item *Item) error

	// Update replaces all mutable fields of the item with the given id.
	Update(ctx context.Context, item *Item) error

	// Delete removes the item and returns its last stored state.
	Delete(ctx context.Context, id int64) (*Item, error)
}

// Transactor runs fn inside a store transaction. Repository calls made with
// the context passed to fn join that transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
