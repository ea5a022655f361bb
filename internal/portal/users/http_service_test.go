package users_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"finitefield.org/portal/internal/portal/users"
)

func TestHTTPServiceGetUser(t *testing.T) {
	t.Parallel()

	var receivedAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/base/api/users/u%201", r.URL.EscapedPath())
		require.Equal(t, http.MethodGet, r.Method)
		receivedAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(users.User{ID: "u 1", Name: "Ada"})
	}))
	t.Cleanup(ts.Close)

	svc, err := users.NewHTTPService(ts.URL+"/base", ts.Client(), users.WithBearerToken("tok"))
	require.NoError(t, err)

	u, err := svc.GetUser(context.Background(), "u 1")
	require.NoError(t, err)
	require.Equal(t, "Ada", u.Name)
	require.Equal(t, "Bearer tok", receivedAuth)
}

func TestHTTPServiceUpdateUserSendsOnlySetFields(t *testing.T) {
	t.Parallel()

	var raw map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/users/u1", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_ = json.NewEncoder(w).Encode(users.User{ID: "u1", Name: "Grace"})
	}))
	t.Cleanup(ts.Close)

	svc, err := users.NewHTTPService(ts.URL, ts.Client())
	require.NoError(t, err)

	u, err := svc.UpdateUser(context.Background(), users.UpdateRequest{ID: "u1", Name: users.StringPtr("Grace")})
	require.NoError(t, err)
	require.Equal(t, "Grace", u.Name)
	require.Equal(t, map[string]any{"name": "Grace"}, raw)
}

func TestHTTPServiceMapsErrors(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/users/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found","message":"user not found","status":404}`))
		case "/api/users/bad":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_request","message":"email is not a valid address","status":400}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(ts.Close)

	svc, err := users.NewHTTPService(ts.URL, ts.Client())
	require.NoError(t, err)

	_, err = svc.GetUser(context.Background(), "missing")
	require.ErrorIs(t, err, users.ErrNotFound)

	_, err = svc.UpdateUser(context.Background(), users.UpdateRequest{ID: "bad", Email: users.StringPtr("x")})
	require.ErrorIs(t, err, users.ErrInvalid)
	require.Contains(t, err.Error(), "email is not a valid address")

	_, err = svc.GetUser(context.Background(), "other")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestNewHTTPServiceRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := users.NewHTTPService(" ", nil)
	require.Error(t, err)
}
