// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/itemvault/itemvault/internal/account"
)

// UserStore is the part of account.Service the auth service depends on.
type UserStore interface {
	CreateUser(ctx context.Context, user *account.User) (*account.User, error)
	GetUserByUsername(ctx context.Context, username string) (*account.User, error)
	UpdateUser(ctx context.Context, id int64, user *account.User) (*account.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// TokenIssuer signs access tokens for a user.
type TokenIssuer interface {
	Issue(userID int64, subject string) (token string, expiresAt time.Time, err error)
}

// Credentials is the client-supplied form of a user. Password is plaintext
// and never leaves this package unhashed.
type Credentials struct {
	Email    string
	Password string
	Username *string
	// IsActive defaults to true when nil.
	IsActive *bool
}

// validate checks the credential fields before any hashing work is done.
func (c Credentials) validate() error {
	if err := account.ValidateEmail(c.Email); err != nil {
		return err
	}
	if c.Username != nil {
		if err := account.ValidateUsername(*c.Username); err != nil {
			return err
		}
	}
	if c.Password == "" {
		return &account.ValidationError{Field: "password", Message: "cannot be empty"}
	}
	return nil
}

// ServiceConfig holds dependencies for Service.
type ServiceConfig struct {
	Users  UserStore
	Hasher PasswordHasher
	Tokens TokenIssuer
	Logger *slog.Logger
}

// Service provides the operations that handle plaintext passwords:
// registration, login, and full user updates.
type Service struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	logger *slog.Logger
	// dummyHash is verified against when the user doesn't exist so that
	// response time does not reveal which usernames are registered. It is
	// produced by hasher so it carries the configured cost.
	dummyHash string
}

// NewService creates a new Service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user store is required")
	}
	if cfg.Hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if cfg.Tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token issuer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dummyHash, err := cfg.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("operation", "hash dummy password").Wrap(err)
	}
	return &Service{
		users:     cfg.Users,
		hasher:    cfg.Hasher,
		tokens:    cfg.Tokens,
		logger:    logger,
		dummyHash: dummyHash,
	}, nil
}

// dummyPassword is hashed once at startup. Unknown users are rejected before
// the verification result is looked at, so it never grants access.
const dummyPassword = "itemvault-unknown-user"

// Register hashes the password and creates the user. Returns an
// account.ErrConflict error if the email or username is taken.
func (s *Service) Register(ctx context.Context, creds Credentials) (*account.User, error) {
	user, err := s.userFromCredentials(creds)
	if err != nil {
		return nil, err
	}
	return s.users.CreateUser(ctx, user)
}

// Login verifies a username and password and issues an access token.
// Unknown users, wrong passwords, and inactive users all fail with the same
// AUTH_INVALID_CREDENTIALS error.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, lookupErr := s.users.GetUserByUsername(ctx, username)
	if lookupErr != nil && !errors.Is(lookupErr, account.ErrNotFound) {
		return "", time.Time{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by username").
			Wrap(lookupErr)
	}

	targetHash := s.dummyHash
	if user != nil {
		targetHash = user.PasswordHash
	}
	// Always verify so unknown users cost the same as known ones.
	valid := s.hasher.Verify(password, targetHash)

	switch {
	case user == nil:
		s.logger.DebugContext(ctx, "login rejected", "reason", "unknown user")
		return "", time.Time{}, errInvalidCredentials()
	case !valid:
		s.logger.DebugContext(ctx, "login rejected", "reason", "password mismatch", "user_id", user.ID)
		return "", time.Time{}, errInvalidCredentials()
	case !user.IsActive:
		s.logger.DebugContext(ctx, "login rejected", "reason", "inactive user", "user_id", user.ID)
		return "", time.Time{}, errInvalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, password)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.UsernameOrEmpty())
	if err != nil {
		return "", time.Time{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			With("user_id", user.ID).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return token, expiresAt, nil
}

// upgradeHash replaces a legacy or weak digest. Failures are logged; the
// login succeeds regardless.
func (s *Service) upgradeHash(ctx context.Context, userID int64, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, userID, newHash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed", "user_id", userID, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", userID)
}

// UpdateUser replaces every field of the user with id, hashing the new
// password.
func (s *Service) UpdateUser(ctx context.Context, id int64, creds Credentials) (*account.User, error) {
	user, err := s.userFromCredentials(creds)
	if err != nil {
		return nil, err
	}
	return s.users.UpdateUser(ctx, id, user)
}

func (s *Service) userFromCredentials(creds Credentials) (*account.User, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(creds.Password)
	if err != nil {
		return nil, oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	active := true
	if creds.IsActive != nil {
		active = *creds.IsActive
	}
	return &account.User{
		Email:        creds.Email,
		Username:     creds.Username,
		PasswordHash: hash,
		IsActive:     active,
	}, nil
}
