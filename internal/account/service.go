// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// ServiceConfig holds dependencies for Service.
type ServiceConfig struct {
	Users      UserRepository
	Items      ItemRepository
	Transactor Transactor
	Logger     *slog.Logger
}

// Service provides the user and item operations exposed to clients.
// Every operation that targets an id resolves it before mutating.
type Service struct {
	users  UserRepository
	items  ItemRepository
	tx     Transactor
	logger *slog.Logger
}

// NewService creates a new Service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("users repository is required")
	}
	if cfg.Items == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("items repository is required")
	}
	if cfg.Transactor == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("transactor is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  cfg.Users,
		items:  cfg.Items,
		tx:     cfg.Transactor,
		logger: logger,
	}, nil
}

// ListUsers returns a page of users with their items.
func (s *Service) ListUsers(ctx context.Context, page Page) ([]*User, error) {
	users, err := s.users.List(ctx, page)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("offset", page.Offset).With("limit", page.Limit).Wrap(err)
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	items, err := s.items.ListByOwners(ctx, ids)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "list owned items").Wrap(err)
	}

	byOwner := make(map[int64][]*Item, len(users))
	for _, it := range items {
		byOwner[it.OwnerID] = append(byOwner[it.OwnerID], it)
	}
	for _, u := range users {
		u.Items = nonNilItems(byOwner[u.ID])
	}
	return users, nil
}

// GetUser returns a user with its items.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByUsername returns the user with the given username, without items.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.users.GetByUsername(ctx, username)
}

// CreateUser stores a new user. Returns an ErrConflict error when the email
// or username is already registered. The store's unique constraints decide
// races between concurrent registrations.
func (s *Service) CreateUser(ctx context.Context, user *User) (*User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, 0, user); err != nil {
		return nil, err
	}

	created := &User{
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		IsActive:     user.IsActive,
	}
	if err := s.users.Create(ctx, created); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, oops.Code("USER_CREATE_FAILED").With("email", user.Email).Wrap(err)
	}
	created.Items = []*Item{}

	s.logger.InfoContext(ctx, "user created", "user_id", created.ID)
	return created, nil
}

// UpdateUser replaces all mutable fields of the user with the given id and
// returns the stored record. Email and username must not belong to any other
// user.
func (s *Service) UpdateUser(ctx context.Context, id int64, user *User) (*User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, id, user); err != nil {
		return nil, err
	}

	updated := &User{
		ID:           id,
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		IsActive:     user.IsActive,
	}
	if err := s.users.Update(ctx, updated); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("USER_UPDATE_FAILED").With("user_id", id).Wrap(err)
	}
	if err := s.attachItems(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdatePasswordHash replaces the stored password hash of a user.
func (s *Service) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	if passwordHash == "" {
		return &ValidationError{Field: "password", Message: "cannot be empty"}
	}
	return s.users.UpdatePasswordHash(ctx, id, passwordHash)
}

// DeleteUser deletes every item owned by the user and then the user, in one
// transaction. The user row stays locked for the duration so no item can be
// created for it concurrently. Returns the deleted user with the items it
// owned.
func (s *Service) DeleteUser(ctx context.Context, id int64) (*User, error) {
	var deleted *User
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.LockForDelete(ctx, id); err != nil {
			return err
		}
		owned, err := s.items.ListByOwner(ctx, id)
		if err != nil {
			return oops.With("operation", "list owned items").With("user_id", id).Wrap(err)
		}
		removed := make([]*Item, 0, len(owned))
		for _, it := range owned {
			item, err := s.items.Delete(ctx, it.ID)
			if errors.Is(err, ErrNotFound) {
				// Deleted by another request since it was listed.
				continue
			}
			if err != nil {
				return oops.With("operation", "delete owned item").With("item_id", it.ID).Wrap(err)
			}
			removed = append(removed, item)
		}
		user, err := s.users.Delete(ctx, id)
		if err != nil {
			return err
		}
		user.Items = removed
		deleted = user
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("USER_DELETE_FAILED").With("user_id", id).Wrap(err)
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id, "items_deleted", len(deleted.Items))
	return deleted, nil
}

// ListItems returns a page of items.
func (s *Service) ListItems(ctx context.Context, page Page) ([]*Item, error) {
	items, err := s.items.List(ctx, page)
	if err != nil {
		return nil, oops.Code("ITEM_LIST_FAILED").With("offset", page.Offset).With("limit", page.Limit).Wrap(err)
	}
	return items, nil
}

// GetItem returns an item.
func (s *Service) GetItem(ctx context.Context, id int64) (*Item, error) {
	return s.items.GetByID(ctx, id)
}

// CreateItem stores a new item owned by ownerID. Returns an ErrNotFound error
// when the owner does not exist, including when it is deleted concurrently.
func (s *Service) CreateItem(ctx context.Context, ownerID int64, in ItemInput) (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}

	item := &Item{Title: in.Title, Description: in.Description, OwnerID: ownerID}
	if err := s.items.Create(ctx, item); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("ITEM_CREATE_FAILED").With("owner_id", ownerID).Wrap(err)
	}
	return item, nil
}

// UpdateItem replaces the title and description of an item and returns the
// stored record.
func (s *Service) UpdateItem(ctx context.Context, id int64, in ItemInput) (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	item := &Item{ID: id, Title: in.Title, Description: in.Description, OwnerID: existing.OwnerID}
	if err := s.items.Update(ctx, item); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("ITEM_UPDATE_FAILED").With("item_id", id).Wrap(err)
	}
	return item, nil
}

// DeleteItem deletes an item and returns its last stored state.
func (s *Service) DeleteItem(ctx context.Context, id int64) (*Item, error) {
	item, err := s.items.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("ITEM_DELETE_FAILED").With("item_id", id).Wrap(err)
	}
	return item, nil
}

// ensureUnique reports a conflict when the email or username of user belongs
// to a user other than selfID. selfID is 0 for new users.
func (s *Service) ensureUnique(ctx context.Context, selfID int64, user *User) error {
	other, err := s.users.GetByEmail(ctx, user.Email)
	switch {
	case err == nil && other.ID != selfID:
		return EmailTaken(user.Email)
	case err != nil && !errors.Is(err, ErrNotFound):
		return oops.With("operation", "check email").Wrap(err)
	}

	if user.Username == nil {
		return nil
	}
	other, err = s.users.GetByUsername(ctx, *user.Username)
	switch {
	case err == nil && other.ID != selfID:
		return UsernameTaken(*user.Username)
	case err != nil && !errors.Is(err, ErrNotFound):
		return oops.With("operation", "check username").Wrap(err)
	}
	return nil
}

func (s *Service) attachItems(ctx context.Context, user *User) error {
	items, err := s.items.ListByOwner(ctx, user.ID)
	if err != nil {
		return oops.With("operation", "list owned items").With("user_id", user.ID).Wrap(err)
	}
	user.Items = nonNilItems(items)
	return nil
}

func nonNilItems(items []*Item) []*Item {
	if items == nil {
		return []*Item{}
	}
	return items
}
