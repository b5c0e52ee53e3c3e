// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

// Package accounttest provides an in-memory store for tests that need the
// account repositories without a database.
package accounttest

import (
	"context"
	"sort"
	"sync"

	"github.com/itemvault/itemvault/internal/account"
)

// Store is an in-memory implementation of the account repositories and
// Transactor. It enforces the same uniqueness and owner-existence rules as
// the Postgres schema. Transactions are serialized and roll back by
// restoring a snapshot taken when they began.
type Store struct {
	txMu sync.Mutex

	mu         sync.Mutex
	users      map[int64]*account.User
	items      map[int64]*account.Item
	nextUserID int64
	nextItemID int64

	// FailItemDelete, when set, is returned by the next item deletion.
	FailItemDelete error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users: make(map[int64]*account.User),
		items: make(map[int64]*account.Item),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() account.UserRepository { return userRepo{s} }

// Items returns the item repository view of the store.
func (s *Store) Items() account.ItemRepository { return itemRepo{s} }

// NewService returns an account.Service backed by the store.
func (s *Store) NewService() *account.Service {
	svc, err := account.NewService(account.ServiceConfig{
		Users:      s.Users(),
		Items:      s.Items(),
		Transactor: s,
	})
	if err != nil {
		panic(err)
	}
	return svc
}

// InTransaction implements account.Transactor.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	users, items := s.snapshot()
	nextUser, nextItem := s.nextUserID, s.nextItemID
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users, s.items = users, items
		s.nextUserID, s.nextItemID = nextUser, nextItem
		s.mu.Unlock()
		return err
	}
	return nil
}

// UserCount returns the number of stored users.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// ItemCount returns the number of stored items.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// ItemsOwnedBy returns the number of stored items owned by ownerID.
func (s *Store) ItemsOwnedBy(ownerID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		if it.OwnerID == ownerID {
			n++
		}
	}
	return n
}

func (s *Store) snapshot() (map[int64]*account.User, map[int64]*account.Item) {
	users := make(map[int64]*account.User, len(s.users))
	for id, u := range s.users {
		users[id] = copyUser(u)
	}
	items := make(map[int64]*account.Item, len(s.items))
	for id, it := range s.items {
		items[id] = copyItem(it)
	}
	return users, items
}

// conflictLocked reports a uniqueness violation against users other than selfID.
func (s *Store) conflictLocked(selfID int64, u *account.User) error {
	for id, other := range s.users {
		if id == selfID {
			continue
		}
		if other.Email == u.Email {
			return account.EmailTaken(u.Email)
		}
		if u.Username != nil && other.Username != nil && *other.Username == *u.Username {
			return account.UsernameTaken(*u.Username)
		}
	}
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id int64) (*account.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, account.UserNotFound(id)
	}
	return copyUser(u), nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*account.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, account.ErrNotFound
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*account.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username != nil && *u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, account.ErrNotFound
}

func (r userRepo) List(_ context.Context, page account.Page) ([]*account.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]int64, 0, len(r.s.users))
	for id := range r.s.users {
		ids = append(ids, id)
	}
	ids = window(ids, page)
	users := make([]*account.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, copyUser(r.s.users[id]))
	}
	return users, nil
}

func (r userRepo) Create(_ context.Context, user *account.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.conflictLocked(0, user); err != nil {
		return err
	}
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	r.s.users[user.ID] = copyUser(user)
	return nil
}

func (r userRepo) Update(_ context.Context, user *account.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return account.UserNotFound(user.ID)
	}
	if err := r.s.conflictLocked(user.ID, user); err != nil {
		return err
	}
	r.s.users[user.ID] = copyUser(user)
	return nil
}

func (r userRepo) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return account.UserNotFound(id)
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r userRepo) LockForDelete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return account.UserNotFound(id)
	}
	return nil
}

func (r userRepo) Delete(_ context.Context, id int64) (*account.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, account.UserNotFound(id)
	}
	for _, it := range r.s.items {
		if it.OwnerID == id {
			return nil, account.ErrConflict
		}
	}
	delete(r.s.users, id)
	return copyUser(u), nil
}

type itemRepo struct{ s *Store }

func (r itemRepo) GetByID(_ context.Context, id int64) (*account.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return nil, account.ItemNotFound(id)
	}
	return copyItem(it), nil
}

func (r itemRepo) List(_ context.Context, page account.Page) ([]*account.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]int64, 0, len(r.s.items))
	for id := range r.s.items {
		ids = append(ids, id)
	}
	ids = window(ids, page)
	items := make([]*account.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, copyItem(r.s.items[id]))
	}
	return items, nil
}

func (r itemRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*account.Item, error) {
	return r.ListByOwners(ctx, []int64{ownerID})
}

func (r itemRepo) ListByOwners(_ context.Context, ownerIDs []int64) ([]*account.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	owners := make(map[int64]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = true
	}
	var ids []int64
	for id, it := range r.s.items {
		if owners[it.OwnerID] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	items := make([]*account.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, copyItem(r.s.items[id]))
	}
	return items, nil
}

func (r itemRepo) Create(_ context.Context, item *account.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[item.OwnerID]; !ok {
		return account.UserNotFound(item.OwnerID)
	}
	r.s.nextItemID++
	item.ID = r.s.nextItemID
	r.s.items[item.ID] = copyItem(item)
	return nil
}

func (r itemRepo) Update(_ context.Context, item *account.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.items[item.ID]
	if !ok {
		return account.ItemNotFound(item.ID)
	}
	item.OwnerID = existing.OwnerID
	r.s.items[item.ID] = copyItem(item)
	return nil
}

func (r itemRepo) Delete(_ context.Context, id int64) (*account.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.FailItemDelete; err != nil {
		r.s.FailItemDelete = nil
		return nil, err
	}
	it, ok := r.s.items[id]
	if !ok {
		return nil, account.ItemNotFound(id)
	}
	delete(r.s.items, id)
	return copyItem(it), nil
}

func window(ids []int64, page account.Page) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if page.Offset >= len(ids) {
		return nil
	}
	ids = ids[page.Offset:]
	if page.Limit < len(ids) {
		ids = ids[:page.Limit]
	}
	return ids
}

func copyUser(u *account.User) *account.User {
	c := *u
	if u.Username != nil {
		name := *u.Username
		c.Username = &name
	}
	c.Items = nil
	return &c
}

func copyItem(it *account.Item) *account.Item {
	c := *it
	if it.Description != nil {
		d := *it.Description
		c.Description = &d
	}
	return &c
}
