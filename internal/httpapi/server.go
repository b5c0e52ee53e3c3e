// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

// Package httpapi maps HTTP verbs and paths onto the account and auth
// services.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/itemvault/itemvault/internal/auth"
	"github.com/itemvault/itemvault/internal/observability"
)

// Config holds dependencies for Server.
type Config struct {
	Auth     *auth.Service
	Sessions *auth.SessionResolver
	// Metrics may be nil.
	Metrics *observability.Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger

	// LoginRate and LoginBurst bound /token requests per client.
	LoginRate  float64
	LoginBurst int
}

// Server is the API HTTP server.
type Server struct {
	echo       *echo.Echo
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// New builds the API server and its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Auth == nil {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").Errorf("auth service is required")
	}
	if cfg.Sessions == nil {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").Errorf("session resolver is required")
	}
	if cfg.LoginRate <= 0 || cfg.LoginBurst <= 0 {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").Errorf("login rate and burst must be positive")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(requestID())
	e.Use(observe(logger, tracer, cfg.Metrics))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableErrorHandler: true,
		DisablePrintStack:   true,
	}))

	h := &handlers{auth: cfg.Auth, metrics: cfg.Metrics}

	e.POST("/token", h.login, loginLimiter(cfg.LoginRate, cfg.LoginBurst, cfg.Metrics))
	e.POST("/users", h.register)

	authed := e.Group("", authenticate(cfg.Sessions))
	authed.GET("/users", h.listUsers)
	authed.GET("/users/:user_id", h.getUser)
	authed.PUT("/users/:user_id", h.updateUser)
	authed.DELETE("/users/:user_id", h.deleteUser)
	authed.POST("/users/:user_id/items", h.createItem)
	authed.GET("/items", h.listItems)
	authed.GET("/items/:item_id", h.getItem)
	authed.PUT("/items/:item_id", h.updateItem)
	authed.DELETE("/items/:item_id", h.deleteItem)

	return &Server{echo: e, logger: logger}, nil
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and serves the API. The returned channel receives a
// serve failure and is closed when the server stops.
func (s *Server) Start(addr string) (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("HTTPAPI_ALREADY_RUNNING").Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("HTTPAPI_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop waits for in-flight requests to finish or ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.With("operation", "shutdown_api_server").Wrap(err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
