// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/itemvault/itemvault/internal/account"
	"github.com/itemvault/itemvault/internal/auth"
	"github.com/itemvault/itemvault/internal/observability"
)

type handlers struct {
	auth    *auth.Service
	metrics *observability.Metrics
}

// login handles the form-encoded token request.
func (h *handlers) login(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	if username == "" {
		return &account.ValidationError{Field: "username", Message: "field required"}
	}
	if password == "" {
		return &account.ValidationError{Field: "password", Message: "field required"}
	}

	token, _, err := h.auth.Login(c.Request().Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			h.metrics.RecordLogin(observability.LoginFailure)
		}
		return err
	}
	h.metrics.RecordLogin(observability.LoginSuccess)
	return c.JSON(http.StatusOK, tokenView{AccessToken: token, TokenType: "bearer"})
}

func (h *handlers) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return invalidInput("body", err)
	}
	user, err := h.auth.Register(c.Request().Context(), auth.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserView(user))
}

func (h *handlers) listUsers(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	users, err := session(c).Accounts.ListUsers(c.Request().Context(), page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserViews(users))
}

func (h *handlers) getUser(c echo.Context) error {
	id, err := pathID(c, "user_id")
	if err != nil {
		return err
	}
	user, err := session(c).Accounts.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserView(user))
}

func (h *handlers) updateUser(c echo.Context) error {
	id, err := pathID(c, "user_id")
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return invalidInput("body", err)
	}
	user, err := h.auth.UpdateUser(c.Request().Context(), id, auth.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserView(user))
}

func (h *handlers) deleteUser(c echo.Context) error {
	id, err := pathID(c, "user_id")
	if err != nil {
		return err
	}
	user, err := session(c).Accounts.DeleteUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserView(user))
}

func (h *handlers) createItem(c echo.Context) error {
	ownerID, err := pathID(c, "user_id")
	if err != nil {
		return err
	}
	in, err := bindItem(c)
	if err != nil {
		return err
	}
	item, err := session(c).Accounts.CreateItem(c.Request().Context(), ownerID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newItemView(item))
}

func (h *handlers) listItems(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	items, err := session(c).Accounts.ListItems(c.Request().Context(), page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newItemViews(items))
}

func (h *handlers) getItem(c echo.Context) error {
	id, err := pathID(c, "item_id")
	if err != nil {
		return err
	}
	item, err := session(c).Accounts.GetItem(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newItemView(item))
}

func (h *handlers) updateItem(c echo.Context) error {
	id, err := pathID(c, "item_id")
	if err != nil {
		return err
	}
	in, err := bindItem(c)
	if err != nil {
		return err
	}
	item, err := session(c).Accounts.UpdateItem(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newItemView(item))
}

func (h *handlers) deleteItem(c echo.Context) error {
	id, err := pathID(c, "item_id")
	if err != nil {
		return err
	}
	item, err := session(c).Accounts.DeleteItem(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newItemView(item))
}

func bindItem(c echo.Context) (account.ItemInput, error) {
	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return account.ItemInput{}, invalidInput("body", err)
	}
	return account.ItemInput{Title: req.Title, Description: req.Description}, nil
}

func pathID(c echo.Context, name string) (int64, error) {
	var id int64
	if err := echo.PathParamsBinder(c).MustInt64(name, &id).BindError(); err != nil {
		return 0, &account.ValidationError{Field: name, Message: "must be an integer"}
	}
	return id, nil
}

// pageParams reads skip and limit, defaulting to the first page.
func pageParams(c echo.Context) (account.Page, error) {
	page := account.DefaultPage()
	skip, limit := page.Offset, page.Limit
	if err := echo.QueryParamsBinder(c).Int("skip", &skip).Int("limit", &limit).BindError(); err != nil {
		var bindErr *echo.BindingError
		field := "query"
		if errors.As(err, &bindErr) {
			field = bindErr.Field
		}
		return account.Page{}, &account.ValidationError{Field: field, Message: "must be an integer"}
	}
	return account.NewPage(skip, limit)
}
