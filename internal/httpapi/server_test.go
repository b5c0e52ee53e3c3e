// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/itemvault/itemvault/internal/account/accounttest"
	"github.com/itemvault/itemvault/internal/auth"
	"github.com/itemvault/itemvault/internal/httpapi"
	"github.com/itemvault/itemvault/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

type userResp struct {
	ID       int64      `json:"id"`
	Email    string     `json:"email"`
	Username *string    `json:"username"`
	IsActive bool       `json:"is_active"`
	Items    []itemResp `json:"items"`
}

type itemResp struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	OwnerID     int64   `json:"owner_id"`
}

type api struct {
	t       *testing.T
	handler http.Handler
	store   *accounttest.Store
	clock   *clock
	metrics *observability.Metrics
	cfg     httpapi.Config
}

type apiOption func(*httpapi.Config)

func withLoginLimit(rate float64, burst int) apiOption {
	return func(c *httpapi.Config) {
		c.LoginRate = rate
		c.LoginBurst = burst
	}
}

func newAPI(t *testing.T, opts ...apiOption) *api {
	t.Helper()
	store := accounttest.NewStore()
	accounts := store.NewService()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Algorithm: "HS256",
		Secret:    testSecret,
		Lifetime:  time.Hour,
		Now:       clk.Now,
	})
	require.NoError(t, err)
	hasher, err := auth.NewArgon2idHasher(auth.HasherParams{Time: 1, MemoryKiB: 1024, Threads: 1})
	require.NoError(t, err)
	authSvc, err := auth.NewService(auth.ServiceConfig{Users: accounts, Hasher: hasher, Tokens: tokens})
	require.NoError(t, err)
	sessions, err := auth.NewSessionResolver(tokens, accounts, nil)
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cfg := httpapi.Config{
		Auth:       authSvc,
		Sessions:   sessions,
		Metrics:    metrics,
		LoginRate:  100,
		LoginBurst: 100,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv, err := httpapi.New(cfg)
	require.NoError(t, err)

	return &api{t: t, handler: srv.Handler(), store: store, clock: clk, metrics: metrics, cfg: cfg}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(a.t, err)
			raw = string(b)
		}
		reader = bytes.NewReader([]byte(raw))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *api) postToken(username, password string) *httptest.ResponseRecorder {
	a.t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *api) register(email, username, password string) userResp {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/users", "", map[string]any{
		"email": email, "username": username, "password": password,
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[userResp](a.t, rec)
}

func (a *api) login(username, password string) string {
	a.t.Helper()
	rec := a.postToken(username, password)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]string](a.t, rec)
	return body["access_token"]
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["detail"]
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := httpapi.New(httpapi.Config{})
	assert.ErrorContains(t, err, "auth service is required")
}

func TestRegister(t *testing.T) {
	a := newAPI(t)

	t.Run("returns user view without password", func(t *testing.T) {
		rec := a.do(http.MethodPost, "/users", "", map[string]any{
			"email": "alice@example.com", "username": "alice", "password": "s3cret",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "password")
		assert.NotContains(t, rec.Body.String(), "s3cret")

		user := decode[userResp](t, rec)
		assert.Positive(t, user.ID)
		assert.Equal(t, "alice@example.com", user.Email)
		require.NotNil(t, user.Username)
		assert.Equal(t, "alice", *user.Username)
		assert.True(t, user.IsActive)
		assert.NotNil(t, user.Items)
		assert.Empty(t, user.Items)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := a.do(http.MethodPost, "/users", "", map[string]any{
			"email": "alice@example.com", "username": "other", "password": "pw",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Email already registered", detail(t, rec))
	})

	t.Run("trailing slash routes the same", func(t *testing.T) {
		rec := a.do(http.MethodPost, "/users/", "", map[string]any{
			"email": "bob@example.com", "password": "pw",
		})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("invalid input is unprocessable", func(t *testing.T) {
		for name, body := range map[string]any{
			"bad email":      map[string]any{"email": "not-an-email", "password": "pw"},
			"empty password": map[string]any{"email": "carol@example.com", "password": ""},
			"malformed json": `{"email":`,
		} {
			t.Run(name, func(t *testing.T) {
				rec := a.do(http.MethodPost, "/users", "", body)
				assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
				assert.NotEmpty(t, detail(t, rec))
			})
		}
	})
}

func TestLogin(t *testing.T) {
	a := newAPI(t)
	a.register("alice@example.com", "alice", "s3cret")

	t.Run("issues bearer token", func(t *testing.T) {
		rec := a.postToken("alice", "s3cret")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode[map[string]string](t, rec)
		assert.Equal(t, "bearer", body["token_type"])
		assert.NotEmpty(t, body["access_token"])
	})

	t.Run("failures are uniform", func(t *testing.T) {
		wrong := a.postToken("alice", "nope")
		unknown := a.postToken("mallory", "s3cret")

		for _, rec := range []*httptest.ResponseRecorder{wrong, unknown} {
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "Incorrect username or password", detail(t, rec))
		}
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	})

	t.Run("missing form fields", func(t *testing.T) {
		rec := a.postToken("", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	assert.InDelta(t, 1, testutil.ToFloat64(a.metrics.Logins.WithLabelValues(observability.LoginSuccess)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(a.metrics.Logins.WithLabelValues(observability.LoginFailure)), 0)
}

func TestLogin_RateLimited(t *testing.T) {
	a := newAPI(t, withLoginLimit(0.001, 2))

	assert.Equal(t, http.StatusUnauthorized, a.postToken("ghost", "pw").Code)
	assert.Equal(t, http.StatusUnauthorized, a.postToken("ghost", "pw").Code)

	rec := a.postToken("ghost", "pw")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many login attempts", detail(t, rec))
	assert.InDelta(t, 1, testutil.ToFloat64(a.metrics.Logins.WithLabelValues(observability.LoginLimited)), 0)

	// Other routes are not limited.
	rec = a.do(http.MethodPost, "/users", "", map[string]any{"email": "x@example.com", "password": "pw"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthentication(t *testing.T) {
	a := newAPI(t)
	a.register("alice@example.com", "alice", "s3cret")
	token := a.login("alice", "s3cret")

	t.Run("missing token", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/users", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "Not authenticated", detail(t, rec))
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/users", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "Could not validate credentials", detail(t, rec))
	})

	t.Run("valid token", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/users", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		a.clock.t = a.clock.t.Add(2 * time.Hour)
		rec := a.do(http.MethodGet, "/users", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Could not validate credentials", detail(t, rec))
	})
}

func TestUsers(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice@example.com", "alice", "s3cret")
	bob := a.register("bob@example.com", "bob", "hunter2")
	token := a.login("alice", "s3cret")

	t.Run("list with paging", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/users?skip=1&limit=1", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		users := decode[[]userResp](t, rec)
		require.Len(t, users, 1)
		assert.Equal(t, bob.ID, users[0].ID)
	})

	t.Run("bad paging", func(t *testing.T) {
		assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodGet, "/users?skip=-1", token, nil).Code)
		assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodGet, "/users?limit=many", token, nil).Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/users/"+itoa(alice.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice@example.com", decode[userResp](t, rec).Email)
	})

	t.Run("get missing", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/users/9999", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", detail(t, rec))
	})

	t.Run("non-numeric id", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/users/abc", token, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("update replaces the record", func(t *testing.T) {
		rec := a.do(http.MethodPut, "/users/"+itoa(bob.ID), token, map[string]any{
			"email": "robert@example.com", "username": "robert", "password": "newpass",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode[userResp](t, rec)
		assert.Equal(t, "robert@example.com", updated.Email)
		require.NotNil(t, updated.Username)
		assert.Equal(t, "robert", *updated.Username)

		assert.Equal(t, http.StatusOK, a.postToken("robert", "newpass").Code)
		assert.Equal(t, http.StatusUnauthorized, a.postToken("robert", "hunter2").Code)
	})

	t.Run("update to another user's email conflicts", func(t *testing.T) {
		rec := a.do(http.MethodPut, "/users/"+itoa(bob.ID), token, map[string]any{
			"email": "alice@example.com", "password": "pw",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("update missing user", func(t *testing.T) {
		rec := a.do(http.MethodPut, "/users/9999", token, map[string]any{
			"email": "ghost@example.com", "password": "pw",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := a.do(http.MethodDelete, "/users/"+itoa(bob.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, bob.ID, decode[userResp](t, rec).ID)

		assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, "/users/"+itoa(bob.ID), token, nil).Code)
	})
}

func TestItems(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice@example.com", "alice", "s3cret")
	token := a.login("alice", "s3cret")
	itemsPath := "/users/" + itoa(alice.ID) + "/items"

	rec := a.do(http.MethodPost, itemsPath, token, map[string]any{"title": "lamp"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lamp := decode[itemResp](t, rec)
	assert.Equal(t, alice.ID, lamp.OwnerID)
	assert.Nil(t, lamp.Description)
	assert.Contains(t, rec.Body.String(), `"description":null`)

	rec = a.do(http.MethodPost, itemsPath, token, map[string]any{"title": "desk", "description": "oak"})
	require.Equal(t, http.StatusOK, rec.Code)
	desk := decode[itemResp](t, rec)

	t.Run("owner view lists items", func(t *testing.T) {
		user := decode[userResp](t, a.do(http.MethodGet, "/users/"+itoa(alice.ID), token, nil))
		require.Len(t, user.Items, 2)
		assert.Equal(t, lamp.ID, user.Items[0].ID)
	})

	t.Run("missing owner", func(t *testing.T) {
		before := a.store.ItemCount()
		rec := a.do(http.MethodPost, "/users/9999/items", token, map[string]any{"title": "orphan"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", detail(t, rec))
		assert.Equal(t, before, a.store.ItemCount())
	})

	t.Run("empty title", func(t *testing.T) {
		rec := a.do(http.MethodPost, itemsPath, token, map[string]any{"title": ""})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("list and get", func(t *testing.T) {
		items := decode[[]itemResp](t, a.do(http.MethodGet, "/items/", token, nil))
		assert.Len(t, items, 2)

		got := decode[itemResp](t, a.do(http.MethodGet, "/items/"+itoa(desk.ID), token, nil))
		require.NotNil(t, got.Description)
		assert.Equal(t, "oak", *got.Description)
	})

	t.Run("update", func(t *testing.T) {
		rec := a.do(http.MethodPut, "/items/"+itoa(desk.ID), token, map[string]any{"title": "standing desk"})
		require.Equal(t, http.StatusOK, rec.Code)
		updated := decode[itemResp](t, rec)
		assert.Equal(t, "standing desk", updated.Title)
		assert.Nil(t, updated.Description)
		assert.Equal(t, alice.ID, updated.OwnerID)

		assert.Equal(t, http.StatusNotFound,
			a.do(http.MethodPut, "/items/9999", token, map[string]any{"title": "x"}).Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := a.do(http.MethodDelete, "/items/"+itoa(lamp.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, lamp.ID, decode[itemResp](t, rec).ID)

		rec = a.do(http.MethodGet, "/items/"+itoa(lamp.ID), token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Item not found", detail(t, rec))
	})
}

func TestScenario_DeleteUserCascadesAndInvalidatesToken(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice@example.com", "alice", "s3cret")
	a.register("bob@example.com", "bob", "hunter2")
	aliceToken := a.login("alice", "s3cret")
	bobToken := a.login("bob", "hunter2")

	rec := a.do(http.MethodPost, "/users/"+itoa(alice.ID)+"/items", aliceToken, map[string]any{"title": "t"})
	require.Equal(t, http.StatusOK, rec.Code)
	item := decode[itemResp](t, rec)

	rec = a.do(http.MethodDelete, "/users/"+itoa(alice.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deleted := decode[userResp](t, rec)
	require.Len(t, deleted.Items, 1)
	assert.Equal(t, item.ID, deleted.Items[0].ID)

	assert.Equal(t, 0, a.store.ItemsOwnedBy(alice.ID))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/items/"+itoa(item.ID), bobToken, nil).Code)

	rec = a.do(http.MethodGet, "/users", aliceToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "token of a deleted user must not resolve")
}

func TestUnmatchedRoute(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, detail(t, rec))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestMetrics(t *testing.T) {
	a := newAPI(t)
	a.register("alice@example.com", "alice", "s3cret")

	assert.InDelta(t, 1,
		testutil.ToFloat64(a.metrics.HTTPRequests.WithLabelValues(http.MethodPost, "/users", "200")), 0)
}

func TestServer_StartStop(t *testing.T) {
	srv, err := httpapi.New(newAPI(t).cfg)
	require.NoError(t, err)

	errCh, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + srv.Addr() + "/users")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))

	_, open := <-errCh
	assert.False(t, open)
}
