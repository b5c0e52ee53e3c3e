// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/itemvault/itemvault/internal/auth"
	"github.com/itemvault/itemvault/internal/observability"
)

// Echo context keys.
const (
	sessionKey   = "session"
	authErrorKey = "auth_error"
)

const unmatchedRoute = "unmatched"

// limiterExpiry is how long an idle client's bucket is kept.
const limiterExpiry = 3 * time.Minute

func requestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return ulid.Make().String() },
	})
}

// observe wraps each request in a server span, records request metrics and
// writes one log line. Handler errors are rendered here so the final status
// is known.
func observe(logger *slog.Logger, tracer trace.Tracer, metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			route := routeOf(c)

			ctx, span := tracer.Start(req.Context(), req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", route),
				))
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			elapsed := time.Since(start)
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
				if err != nil {
					span.RecordError(err)
				}
			}

			if metrics != nil {
				metrics.HTTPRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
				metrics.HTTPDuration.WithLabelValues(req.Method, route).Observe(elapsed.Seconds())
			}

			logger.LogAttrs(ctx, slog.LevelInfo, "request",
				slog.String("method", req.Method),
				slog.String("route", route),
				slog.Int("status", status),
				slog.Duration("latency", elapsed),
				slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}

// routeOf returns the matched route template, so metric labels stay bounded.
func routeOf(c echo.Context) string {
	path := c.Path()
	if path == "" || path == "/*" {
		return unmatchedRoute
	}
	return path
}

// authenticate resolves the bearer token into a session stored under
// sessionKey.
func authenticate(sessions *auth.SessionResolver) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: sessionKey,
		ParseTokenFunc: func(c echo.Context, token string) (any, error) {
			sess, err := sessions.Resolve(c.Request().Context(), token)
			if err != nil {
				c.Set(authErrorKey, err)
				return nil, err
			}
			return sess, nil
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			if err, ok := c.Get(authErrorKey).(error); ok {
				return err
			}
			return errNotAuthenticated()
		},
	})
}

func session(c echo.Context) *auth.Session {
	sess, ok := c.Get(sessionKey).(*auth.Session)
	if !ok {
		// Routes that call session are registered behind authenticate.
		panic("httpapi: session missing from authenticated route")
	}
	return sess
}

func loginLimiter(rps float64, burst int, metrics *observability.Metrics) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: limiterExpiry,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			return errors.Join(errRateLimited, err)
		},
		DenyHandler: func(_ echo.Context, _ string, _ error) error {
			metrics.RecordLogin(observability.LoginLimited)
			return errRateLimited
		},
	})
}
