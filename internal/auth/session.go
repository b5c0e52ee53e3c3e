// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/itemvault/itemvault/internal/account"
)

// TokenValidator verifies an access token and returns its claims.
type TokenValidator interface {
	Validate(token string) (Claims, error)
}

// Session is the request-scoped handle for an authenticated caller: who they
// are and the account operations available to them for the rest of the
// request.
type Session struct {
	User     *account.User
	Accounts *account.Service
}

// SessionResolver turns bearer tokens into Sessions.
type SessionResolver struct {
	tokens   TokenValidator
	accounts *account.Service
	logger   *slog.Logger
}

// NewSessionResolver creates a SessionResolver.
func NewSessionResolver(tokens TokenValidator, accounts *account.Service, logger *slog.Logger) (*SessionResolver, error) {
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token validator is required")
	}
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("account service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionResolver{tokens: tokens, accounts: accounts, logger: logger}, nil
}

// Resolve validates token and loads the user it names. A user deleted,
// deactivated, or replaced by a new account with the same username after the
// token was issued fails like an invalid token.
func (r *SessionResolver) Resolve(ctx context.Context, token string) (*Session, error) {
	claims, err := r.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	user, err := r.accounts.GetUserByUsername(ctx, claims.Subject)
	if errors.Is(err, account.ErrNotFound) {
		r.logger.DebugContext(ctx, "token rejected", "reason", "subject not found")
		return nil, errInvalidToken()
	}
	if err != nil {
		return nil, oops.Code("AUTH_RESOLVE_FAILED").With("operation", "get user by username").Wrap(err)
	}
	if user.ID != claims.UserID {
		r.logger.DebugContext(ctx, "token rejected", "reason", "username reassigned", "user_id", user.ID)
		return nil, errInvalidToken()
	}
	if !user.IsActive {
		r.logger.DebugContext(ctx, "token rejected", "reason", "inactive user", "user_id", user.ID)
		return nil, errInvalidToken()
	}
	return &Session{User: user, Accounts: r.accounts}, nil
}
