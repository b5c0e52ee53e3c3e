// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package httpapi

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/itemvault/itemvault/internal/account"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"validation", &account.ValidationError{Field: "title", Message: "cannot be empty"}, 422, "title: cannot be empty"},
		{"user not found", account.UserNotFound(3), 404, "User not found"},
		{"wrapped not found keeps public message", oops.With("op", "x").Wrap(account.ItemNotFound(3)), 404, "Item not found"},
		{"bare not found", account.ErrNotFound, 404, "Not found"},
		{"conflict", account.UsernameTaken("ada"), 409, "Username already registered"},
		{"not authenticated", errNotAuthenticated(), 401, "Not authenticated"},
		{"echo error", echo.ErrMethodNotAllowed, 405, "Method Not Allowed"},
		{"rate limited", errRateLimited, 429, "Too many login attempts"},
		{"internal", oops.Code("ITEM_LIST_FAILED").Errorf("connection reset by peer"), 500, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, detail := classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantDetail, detail)
		})
	}
}

func newTestEcho(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = errorHandler(logger)
	e.Use(requestID())
	e.Use(observe(logger, noop.NewTracerProvider().Tracer(""), nil))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{DisableErrorHandler: true, DisablePrintStack: true}))
	return e
}

func TestErrorHandler_InternalErrorsAreLoggedNotLeaked(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	e := newTestEcho(logger)
	e.GET("/boom", func(echo.Context) error {
		return oops.Code("USER_LIST_FAILED").With("offset", 0).Wrap(errors.New("pq: relation does not exist"))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "relation")
	assert.Contains(t, logs.String(), "USER_LIST_FAILED")
	assert.Contains(t, logs.String(), `"route":"/boom"`)
}

func TestErrorHandler_PanicsBecome500(t *testing.T) {
	var logs bytes.Buffer
	e := newTestEcho(slog.New(slog.NewJSONHandler(&logs, nil)))
	e.GET("/panic", func(echo.Context) error { panic("nil map") })

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "request failed")
	assert.Contains(t, logs.String(), `"status":500`)
}

func TestErrorHandler_UnauthorizedSetsChallenge(t *testing.T) {
	e := newTestEcho(slog.New(slog.DiscardHandler))
	e.GET("/private", func(echo.Context) error { return errNotAuthenticated() })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
}

func TestErrorHandler_HeadHasNoBody(t *testing.T) {
	e := newTestEcho(slog.New(slog.DiscardHandler))
	e.HEAD("/gone", func(echo.Context) error { return account.ItemNotFound(1) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/gone", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}
