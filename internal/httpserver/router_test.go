package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/config"
	"chatrelay/internal/httpserver"
	"chatrelay/internal/presence"
	"chatrelay/internal/security"
	"chatrelay/internal/service"
	"chatrelay/internal/store/sqlite"
	"chatrelay/internal/ws"
)

type apiFixture struct {
	ts       *httptest.Server
	registry *presence.Registry
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepo(db)
	convs := sqlite.NewConversationRepo(db)
	msgs := sqlite.NewMessageRepo(db)

	cfg := &config.Config{
		AppName:     "chatrelay",
		Env:         "test",
		JWTSecret:   "test-secret",
		CORSOrigins: []string{"http://localhost:3000"},
	}
	tokens := security.NewTokenService(cfg.JWTSecret, time.Hour)
	hasher := security.NewPasswordHasher(4)
	registry := presence.NewRegistry()
	hub := ws.NewHub()
	authSvc := service.NewAuthService(users, tokens, hasher)
	chatSvc := service.NewChatService(users, convs, msgs, registry, zerolog.Nop())

	router := httpserver.NewRouter(cfg, zerolog.Nop(), db, hub, registry, authSvc, chatSvc, users)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &apiFixture{ts: ts, registry: registry}
}

func (f *apiFixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.ts.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *apiFixture) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        struct {
		ID    string `json:"_id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

func (f *apiFixture) register(t *testing.T, name string) tokenResponse {
	t.Helper()
	resp := f.postJSON(t, "/api/auth/register", map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "Password1!",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tr tokenResponse
	decodeBody(t, resp, &tr)
	return tr
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.get(t, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPIFixture(t)

	tr := f.register(t, "alice")
	assert.NotEmpty(t, tr.AccessToken)
	assert.Equal(t, "bearer", tr.TokenType)
	assert.Equal(t, "alice", tr.User.Name)
	assert.NotEmpty(t, tr.User.ID)

	t.Run("DuplicateEmail", func(t *testing.T) {
		resp := f.postJSON(t, "/api/auth/register", map[string]string{
			"name":     "alice2",
			"email":    "alice@example.com",
			"password": "Password1!",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("LoginOK", func(t *testing.T) {
		resp := f.postJSON(t, "/api/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "Password1!",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got tokenResponse
		decodeBody(t, resp, &got)
		assert.NotEmpty(t, got.AccessToken)
		assert.Equal(t, tr.User.ID, got.User.ID)
	})

	t.Run("LoginWrongPassword", func(t *testing.T) {
		resp := f.postJSON(t, "/api/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestMe(t *testing.T) {
	f := newAPIFixture(t)
	tr := f.register(t, "alice")

	t.Run("Authorized", func(t *testing.T) {
		resp := f.get(t, "/api/auth/me", tr.AccessToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		decodeBody(t, resp, &body)
		assert.Equal(t, tr.User.ID, body["_id"])
	})

	t.Run("NoToken", func(t *testing.T) {
		resp := f.get(t, "/api/auth/me", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("BadToken", func(t *testing.T) {
		resp := f.get(t, "/api/auth/me", "garbage")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestGetUser(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	f.registry.Add(bob.User.ID, "conn-1")

	resp := f.get(t, "/api/users/"+bob.User.ID, alice.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "bob", body["name"])
	assert.Equal(t, true, body["online"])

	t.Run("NotFound", func(t *testing.T) {
		resp := f.get(t, "/api/users/nobody", alice.AccessToken)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestDebugOnline(t *testing.T) {
	f := newAPIFixture(t)
	f.registry.Add("user-1", "conn-a")
	f.registry.Add("user-1", "conn-b")

	resp := f.get(t, "/debug/online", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string][]string
	decodeBody(t, resp, &body)
	assert.ElementsMatch(t, []string{"conn-a", "conn-b"}, body["user-1"])
}
