// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/itemvault/itemvault/internal/account"
	"github.com/itemvault/itemvault/internal/auth"
	"github.com/itemvault/itemvault/pkg/errutil"
)

var errRateLimited = echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts")

func errNotAuthenticated() error {
	return oops.Code("AUTH_MISSING_TOKEN").
		Public("Not authenticated").
		Wrap(auth.ErrUnauthorized)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail string `json:"detail"`
}

// classify maps an error to a status code and client-facing detail.
func classify(err error) (int, string) {
	var validation *account.ValidationError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, validation.Error()
	case errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound, publicMessage(err, "Not found")
	case errors.Is(err, account.ErrConflict):
		return http.StatusConflict, publicMessage(err, "Conflict")
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, publicMessage(err, "Could not validate credentials")
	case errors.As(err, &httpErr):
		return httpErr.Code, fmt.Sprint(httpErr.Message)
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func publicMessage(err error, fallback string) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if msg := oopsErr.Public(); msg != "" {
			return msg
		}
	}
	return fallback
}

func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, detail := classify(err)
		if status == http.StatusUnauthorized {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}
		if status >= http.StatusInternalServerError {
			errutil.LogErrorContext(c.Request().Context(), logger, "request failed", err,
				"route", routeOf(c),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, errorBody{Detail: detail})
		}
		if writeErr != nil {
			logger.WarnContext(c.Request().Context(), "write error response", "error", writeErr)
		}
	}
}

// invalidInput reports a malformed request part as a validation failure.
func invalidInput(field string, err error) error {
	msg := "invalid value"
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg = fmt.Sprint(httpErr.Message)
	}
	return &account.ValidationError{Field: field, Message: msg}
}
