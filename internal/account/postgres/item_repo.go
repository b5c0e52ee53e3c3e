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

const itemColumns = `id, title, description, owner_id`

// ItemRepository implements account.ItemRepository using PostgreSQL.
type ItemRepository struct {
	pool poolIface
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(pool poolIface) *ItemRepository {
	return &ItemRepository{pool: pool}
}

// GetByID retrieves an item by id.
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*account.Item, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE id = $1
	`, id)

	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ItemNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("ITEM_GET_BY_ID_FAILED").
			With("operation", "get item by id").
			With("item_id", id).
			Wrap(err)
	}
	return item, nil
}

// List returns a page of items ordered by id.
func (r *ItemRepository) List(ctx context.Context, page account.Page) ([]*account.Item, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		ORDER BY id
		OFFSET $1 LIMIT $2
	`, page.Offset, page.Limit)
	if err != nil {
		return nil, oops.Code("ITEM_LIST_FAILED").With("operation", "list items").Wrap(err)
	}
	return collectItems(rows)
}

// ListByOwner returns all items owned by a user, ordered by id.
func (r *ItemRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*account.Item, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE owner_id = $1
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, oops.Code("ITEM_LIST_FAILED").
			With("operation", "list items by owner").
			With("owner_id", ownerID).
			Wrap(err)
	}
	return collectItems(rows)
}

// ListByOwners returns all items owned by any of the given users, ordered by id.
func (r *ItemRepository) ListByOwners(ctx context.Context, ownerIDs []int64) ([]*account.Item, error) {
	if len(ownerIDs) == 0 {
		return []*account.Item{}, nil
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE owner_id = ANY($1)
		ORDER BY id
	`, ownerIDs)
	if err != nil {
		return nil, oops.Code("ITEM_LIST_FAILED").
			With("operation", "list items by owners").
			With("owners", len(ownerIDs)).
			Wrap(err)
	}
	return collectItems(rows)
}

// Create inserts a new item and overwrites it with the stored record.
// The owner foreign key is checked by the store; a violation means the owner
// does not exist.
func (r *ItemRepository) Create(ctx context.Context, item *account.Item) error {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO items (title, description, owner_id)
		VALUES ($1, $2, $3)
		RETURNING `+itemColumns,
		item.Title,
		item.Description,
		item.OwnerID,
	)

	stored, err := scanItem(row)
	if err != nil {
		code, constraint, ok := constraintViolation(err)
		if ok && code == pgerrcode.ForeignKeyViolation && constraint == constraintItemsOwner {
			return oops.With("constraint", constraint).Wrap(account.UserNotFound(item.OwnerID))
		}
		return oops.Code("ITEM_CREATE_FAILED").
			With("operation", "insert item").
			With("owner_id", item.OwnerID).
			Wrap(err)
	}
	*item = *stored
	return nil
}

// Update replaces the title and description of an item and overwrites it
// with the stored record.
func (r *ItemRepository) Update(ctx context.Context, item *account.Item) error {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE items SET
			title = $2,
			description = $3
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID,
		item.Title,
		item.Description,
	)

	stored, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.ItemNotFound(item.ID)
	}
	if err != nil {
		return oops.Code("ITEM_UPDATE_FAILED").
			With("operation", "update item").
			With("item_id", item.ID).
			Wrap(err)
	}
	*item = *stored
	return nil
}

// Delete removes an item and returns its last stored state.
func (r *ItemRepository) Delete(ctx context.Context, id int64) (*account.Item, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		DELETE FROM items WHERE id = $1
		RETURNING `+itemColumns,
		id,
	)

	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ItemNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("ITEM_DELETE_FAILED").
			With("operation", "delete item").
			With("item_id", id).
			Wrap(err)
	}
	return item, nil
}

func collectItems(rows pgx.Rows) ([]*account.Item, error) {
	defer rows.Close()

	items := make([]*account.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ITEM_LIST_FAILED").With("operation", "iterate items").Wrap(err)
	}
	return items, nil
}

// scanItem scans a single row into an Item.
// Callers are responsible for handling pgx.ErrNoRows.
func scanItem(row pgx.Row) (*account.Item, error) {
	var item account.Item
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.OwnerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		if _, _, ok := constraintViolation(err); ok {
			return nil, err //nolint:wrapcheck // Callers translate constraint violations
		}
		return nil, oops.Code("ITEM_SCAN_FAILED").
			With("operation", "scan item").
			Wrap(err)
	}
	return &item, nil
}

// Compile-time interface check.
var _ account.ItemRepository = (*ItemRepository)(nil)
