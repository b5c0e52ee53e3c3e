// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package account

// User is an identity record. PasswordHash holds the encoded digest and is
// never rendered to clients.
type User struct {
	ID           int64
	Email        string
	Username     *string
	PasswordHash string
	IsActive     bool

	// Items holds the items owned by the user when the record was read
	// through the Service. Repositories leave it nil.
	Items []*Item
}

// UsernameOrEmpty returns the username, or "" when none is set.
func (u *User) UsernameOrEmpty() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}

// Validate checks the mutable fields of a user record.
func (u *User) Validate() error {
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	if u.Username != nil {
		if err := ValidateUsername(*u.Username); err != nil {
			return err
		}
	}
	if u.PasswordHash == "" {
		return &ValidationError{Field: "password", Message: "cannot be empty"}
	}
	return nil
}
