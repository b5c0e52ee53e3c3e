// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package account

// Item is a resource owned by exactly one user.
type Item struct {
	ID          int64
	Title       string
	Description *string
	OwnerID     int64
}

// ItemInput carries the client-supplied fields of an item.
type ItemInput struct {
	Title       string
	Description *string
}

// Validate checks the item fields.
func (in ItemInput) Validate() error {
	if err := ValidateTitle(in.Title); err != nil {
		return err
	}
	return ValidateDescription(in.Description)
}
