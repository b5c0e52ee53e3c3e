// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package httpapi

import "github.com/itemvault/itemvault/internal/account"

// userView is the client representation of a user. The password digest is
// never rendered.
type userView struct {
	ID       int64      `json:"id"`
	Email    string     `json:"email"`
	Username *string    `json:"username,omitempty"`
	IsActive bool       `json:"is_active"`
	Items    []itemView `json:"items"`
}

type itemView struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	OwnerID     int64   `json:"owner_id"`
}

type tokenView struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func newUserView(u *account.User) userView {
	return userView{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		IsActive: u.IsActive,
		Items:    newItemViews(u.Items),
	}
}

func newUserViews(users []*account.User) []userView {
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	return views
}

func newItemView(it *account.Item) itemView {
	return itemView{ID: it.ID, Title: it.Title, Description: it.Description, OwnerID: it.OwnerID}
}

func newItemViews(items []*account.Item) []itemView {
	views := make([]itemView, 0, len(items))
	for _, it := range items {
		views = append(views, newItemView(it))
	}
	return views
}

// Request bodies.

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Username *string `json:"username"`
}

type updateUserRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Username *string `json:"username"`
	IsActive *bool   `json:"is_active"`
}

type itemRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}
