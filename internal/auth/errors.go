// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrUnauthorized is wrapped by every authentication failure.
var ErrUnauthorized = errors.New("unauthorized")

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

func errInvalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").
		Public("Incorrect username or password").
		Wrap(ErrUnauthorized)
}

func errInvalidToken() error {
	return oops.Code("AUTH_INVALID_TOKEN").
		Public("Could not validate credentials").
		Wrap(ErrUnauthorized)
}
