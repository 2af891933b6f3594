package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/avalontm/gemini-auth/auth"
	"github.com/avalontm/gemini-auth/internal/config"
	"github.com/avalontm/gemini-auth/password"
	"github.com/avalontm/gemini-auth/server"
	"github.com/avalontm/gemini-auth/sessions"
	"github.com/avalontm/gemini-auth/token"
	"github.com/avalontm/gemini-auth/users"
)

const (
	testEmail    = "alice@example.com"
	testUsername = "alice"
	testPassword = "Str0ng!Passw0rd"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	issuer := token.NewIssuer(token.NewHMACSigner("handler-test-secret"),
		token.WithTokenExpiry(time.Hour, 24*time.Hour))

	store, err := sessions.NewStore(sessions.NewInMemoryRepo(), issuer)
	require.NoError(t, err)

	service, err := auth.NewService(
		auth.Repos{Users: users.NewInMemoryRepo(), Sessions: store},
		issuer,
		password.NewHasher(password.WithCost(4)),
	)
	require.NoError(t, err)

	srv, err := server.New(config.New(), service, zerolog.Nop())
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *server.Server, method, path string, body any, configure func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if configure != nil {
		configure(req)
	}

	recorder := httptest.NewRecorder()
	srv.ServeHTTP(recorder, req)
	return recorder
}

func registerAndLogin(t *testing.T, srv *server.Server) *auth.TokenPair {
	t.Helper()

	response := doJSON(t, srv, http.MethodPost, server.RouteAuthRegister, map[string]string{
		"username": testUsername,
		"email":    testEmail,
		"password": testPassword,
	}, nil)
	require.Equal(t, http.StatusCreated, response.Code)

	response = doJSON(t, srv, http.MethodPost, server.RouteAuthLogin, map[string]string{
		"email":    testEmail,
		"password": testPassword,
	}, nil)
	require.Equal(t, http.StatusOK, response.Code)

	var body struct {
		Tokens *auth.TokenPair `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	require.NotEmpty(t, body.Tokens.AccessToken)
	return body.Tokens
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t)

	pair := registerAndLogin(t, srv)

	response := doJSON(t, srv, http.MethodGet, server.RouteAuthMe, nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	})
	require.Equal(t, http.StatusOK, response.Code)

	var user users.User
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &user))
	require.Equal(t, testUsername, user.Username)
	require.Equal(t, testEmail, user.Email)
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)

	response := doJSON(t, srv, http.MethodPost, server.RouteAuthRegister, map[string]string{
		"username": "x",
		"email":    "nope",
		"password": "short",
	}, nil)
	require.Equal(t, http.StatusBadRequest, response.Code)

	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	require.GreaterOrEqual(t, len(body.Details), 3)
}

func TestRegisterDuplicate(t *testing.T) {
	srv := newTestServer(t)

	registerAndLogin(t, srv)

	response := doJSON(t, srv, http.MethodPost, server.RouteAuthRegister, map[string]string{
		"username": "different",
		"email":    testEmail,
		"password": testPassword,
	}, nil)
	require.Equal(t, http.StatusConflict, response.Code)
}

func TestLoginFailure(t *testing.T) {
	srv := newTestServer(t)

	registerAndLogin(t, srv)

	response := doJSON(t, srv, http.MethodPost, server.RouteAuthLogin, map[string]string{
		"email":    testEmail,
		"password": "Wr0ng!Passw0rd",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, response.Code)
}

func TestMeRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	response := doJSON(t, srv, http.MethodGet, server.RouteAuthMe, nil, nil)
	require.Equal(t, http.StatusUnauthorized, response.Code)
}

func TestCookieAuth(t *testing.T) {
	srv := newTestServer(t)

	pair := registerAndLogin(t, srv)

	response := doJSON(t, srv, http.MethodGet, server.RouteAuthMe, nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "auth_token", Value: pair.AccessToken})
	})
	require.Equal(t, http.StatusOK, response.Code)
}

func TestHeaderTakesPrecedenceOverCookie(t *testing.T) {
	srv := newTestServer(t)

	pair := registerAndLogin(t, srv)

	// A bad header must not fall through to the valid cookie.
	response := doJSON(t, srv, http.MethodGet, server.RouteAuthMe, nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not.a.jwt")
		r.AddCookie(&http.Cookie{Name: "auth_token", Value: pair.AccessToken})
	})
	require.Equal(t, http.StatusUnauthorized, response.Code)
}

func TestLogoutFlow(t *testing.T) {
	srv := newTestServer(t)

	pair := registerAndLogin(t, srv)

	response := doJSON(t, srv, http.MethodPost, server.RouteAuthLogout, nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	})
	require.Equal(t, http.StatusNoContent, response.Code)

	response = doJSON(t, srv, http.MethodGet, server.RouteAuthMe, nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	})
	require.Equal(t, http.StatusUnauthorized, response.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	srv := newTestServer(t)

	pair := registerAndLogin(t, srv)

	response := doJSON(t, srv, http.MethodPost, server.RouteAuthRefresh, map[string]string{
		"refreshToken": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, response.Code)

	var body struct {
		Tokens *auth.TokenPair `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	require.NotEmpty(t, body.Tokens.AccessToken)

	// Refresh with an access token is rejected.
	response = doJSON(t, srv, http.MethodPost, server.RouteAuthRefresh, map[string]string{
		"refreshToken": pair.AccessToken,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, response.Code)
}

func TestUpdateProfileEndpoint(t *testing.T) {
	srv := newTestServer(t)

	pair := registerAndLogin(t, srv)
	withAuth := func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}

	response := doJSON(t, srv, http.MethodPut, server.RouteProfile, map[string]any{
		"preferences": map[string]any{"theme": "dark"},
	}, withAuth)
	require.Equal(t, http.StatusOK, response.Code)

	var user users.User
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &user))
	require.Equal(t, "dark", user.Preferences["theme"])
}

func TestSessionsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	pair := registerAndLogin(t, srv)

	response := doJSON(t, srv, http.MethodGet, server.RouteSessions, nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	})
	require.Equal(t, http.StatusOK, response.Code)

	var active []*sessions.Session
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &active))
	require.Len(t, active, 1)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	response := doJSON(t, srv, http.MethodGet, server.RouteHealth, nil, nil)
	require.Equal(t, http.StatusOK, response.Code)
}
