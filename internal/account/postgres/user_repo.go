// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/itemvault/itemvault/internal/account"
)

const userColumns = `id, email, username, hashed_password, is_active`

// UserRepository implements account.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*account.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.UserNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("user_id", id).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*account.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// List returns a page of users ordered by id.
func (r *UserRepository) List(ctx context.Context, page account.Page) ([]*account.User, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY id
		OFFSET $1 LIMIT $2
	`, page.Offset, page.Limit)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "list users").
			Wrap(err)
	}
	defer rows.Close()

	users := make([]*account.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "iterate users").
			Wrap(err)
	}
	return users, nil
}

// Create inserts a new user and overwrites it with the stored record.
func (r *UserRepository) Create(ctx context.Context, user *account.User) error {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (email, username, hashed_password, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.IsActive,
	)

	stored, err := scanUser(row)
	if err != nil {
		if conflict := userConflict(err, user); conflict != nil {
			return conflict
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	*user = *stored
	return nil
}

// Update replaces all mutable fields of the user and overwrites it with the
// stored record.
func (r *UserRepository) Update(ctx context.Context, user *account.User) error {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE users SET
			email = $2,
			username = $3,
			hashed_password = $4,
			is_active = $5
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.IsActive,
	)

	stored, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.UserNotFound(user.ID)
	}
	if err != nil {
		if conflict := userConflict(err, user); conflict != nil {
			return conflict
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", user.ID).
			Wrap(err)
	}
	*user = *stored
	return nil
}

// UpdatePasswordHash replaces only the password hash of a user.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET hashed_password = $2
		WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("user_id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return account.UserNotFound(id)
	}
	return nil
}

// LockForDelete takes a row lock on the user for the rest of the current
// transaction. Item inserts referencing the user block on it.
func (r *UserRepository) LockForDelete(ctx context.Context, id int64) error {
	var locked int64
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id FROM users WHERE id = $1 FOR UPDATE
	`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.UserNotFound(id)
	}
	if err != nil {
		return oops.Code("USER_LOCK_FAILED").
			With("operation", "lock user").
			With("user_id", id).
			Wrap(err)
	}
	return nil
}

// Delete removes a user and returns its last stored state. Fails with a
// foreign key violation if the user still owns items.
func (r *UserRepository) Delete(ctx context.Context, id int64) (*account.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		DELETE FROM users WHERE id = $1
		RETURNING `+userColumns,
		id,
	)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.UserNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("user_id", id).
			Wrap(err)
	}
	return user, nil
}

// userConflict maps a unique violation on users to the matching conflict error.
func userConflict(err error, user *account.User) error {
	code, constraint, ok := constraintViolation(err)
	if !ok || code != pgerrcode.UniqueViolation {
		return nil
	}
	switch constraint {
	case constraintUsersEmail:
		return oops.With("constraint", constraint).Wrap(account.EmailTaken(user.Email))
	case constraintUsersUsername:
		return oops.With("constraint", constraint).Wrap(account.UsernameTaken(user.UsernameOrEmpty()))
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*account.User, error) {
	var user account.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.IsActive,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		if _, _, ok := constraintViolation(err); ok {
			return nil, err //nolint:wrapcheck // Callers translate constraint violations
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}
	return &user, nil
}

// Compile-time interface check.
var _ account.UserRepository = (*UserRepository)(nil)
