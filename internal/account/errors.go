// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package account

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a referenced user or item does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// UserNotFound returns an ErrNotFound error for the given user id.
func UserNotFound(id int64) error {
	return oops.Code("USER_NOT_FOUND").
		With("user_id", id).
		Public("User not found").
		Wrap(ErrNotFound)
}

// ItemNotFound returns an ErrNotFound error for the given item id.
func ItemNotFound(id int64) error {
	return oops.Code("ITEM_NOT_FOUND").
		With("item_id", id).
		Public("Item not found").
		Wrap(ErrNotFound)
}

// EmailTaken returns an ErrConflict error for an already registered email.
func EmailTaken(email string) error {
	return oops.Code("EMAIL_TAKEN").
		With("email", email).
		Public("Email already registered").
		Wrap(ErrConflict)
}

// UsernameTaken returns an ErrConflict error for an already registered username.
func UsernameTaken(username string) error {
	return oops.Code("USERNAME_TAKEN").
		With("username", username).
		Public("Username already registered").
		Wrap(ErrConflict)
}
