// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package account

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validation limits for domain types.
const (
	MaxEmailLength       = 254
	MinUsernameLength    = 3
	MaxUsernameLength    = 30
	MaxTitleLength       = 200
	MaxDescriptionLength = 4000
)

// Pagination defaults.
const (
	DefaultOffset = 0
	DefaultLimit  = 100
)

// usernameRegex matches usernames that start with a letter and contain
// only letters, numbers, and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ValidationError represents an input validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks that an email is non-empty, bounded, and shaped like
// local@domain. Emails are compared case-sensitively.
func ValidateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Message: "cannot be empty"}
	}
	if len(email) > MaxEmailLength {
		return &ValidationError{Field: "email", Message: fmt.Sprintf("exceeds maximum length of %d", MaxEmailLength)}
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return &ValidationError{Field: "email", Message: "must be of the form local@domain"}
	}
	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return &ValidationError{Field: "email", Message: "cannot contain whitespace"}
	}
	return nil
}

// ValidateUsername validates a username against the naming rules.
func ValidateUsername(username string) error {
	if username == "" {
		return &ValidationError{Field: "username", Message: "cannot be empty"}
	}
	if len(username) < MinUsernameLength {
		return &ValidationError{Field: "username", Message: fmt.Sprintf("must be at least %d characters", MinUsernameLength)}
	}
	if len(username) > MaxUsernameLength {
		return &ValidationError{Field: "username", Message: fmt.Sprintf("must be at most %d characters", MaxUsernameLength)}
	}
	if !usernameRegex.MatchString(username) {
		return &ValidationError{Field: "username", Message: "must start with a letter and contain only letters, numbers, and underscores"}
	}
	return nil
}

// ValidateTitle checks that an item title is non-empty, valid UTF-8, free of
// control characters, and within the length limit.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Message: "cannot be empty"}
	}
	if !utf8.ValidString(title) {
		return &ValidationError{Field: "title", Message: "must be valid UTF-8"}
	}
	if len(title) > MaxTitleLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("exceeds maximum length of %d", MaxTitleLength)}
	}
	if strings.IndexFunc(title, unicode.IsControl) >= 0 {
		return &ValidationError{Field: "title", Message: "cannot contain control characters"}
	}
	return nil
}

// ValidateDescription checks an optional item description.
func ValidateDescription(description *string) error {
	if description == nil {
		return nil
	}
	if !utf8.ValidString(*description) {
		return &ValidationError{Field: "description", Message: "must be valid UTF-8"}
	}
	if len(*description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Message: fmt.Sprintf("exceeds maximum length of %d", MaxDescriptionLength)}
	}
	return nil
}

// Page selects a window of a list ordered by id.
type Page struct {
	Offset int
	Limit  int
}

// DefaultPage returns the page used when the caller supplies no bounds.
func DefaultPage() Page {
	return Page{Offset: DefaultOffset, Limit: DefaultLimit}
}

// NewPage builds a Page from skip/limit values. Both must be non-negative.
func NewPage(skip, limit int) (Page, error) {
	if skip < 0 {
		return Page{}, &ValidationError{Field: "skip", Message: "must be non-negative"}
	}
	if limit < 0 {
		return Page{}, &ValidationError{Field: "limit", Message: "must be non-negative"}
	}
	return Page{Offset: skip, Limit: limit}, nil
}
