package testutil

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finitefield.org/portal/internal/portal/httpserver"
	"finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/session"
	"finitefield.org/portal/internal/portal/users"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithAuthenticator overrides the login authenticator.
func WithAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Authenticator = auth
	}
}

// WithTokenAuthenticator overrides the bearer token authenticator.
func WithTokenAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.TokenAuthenticator = auth
	}
}

// WithUsers wires a custom user service implementation.
func WithUsers(service users.Service) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Users = service
	}
}

// WithAuthMode selects the login form variant.
func WithAuthMode(mode string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.AuthMode = mode
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Logger = logger
	}
}

// NewServer constructs an httptest server running the portal HTTP stack with sensible defaults.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	hashKey, blockKey := session.GenerateKeys()
	manager, err := session.NewManager(session.Config{HashKey: hashKey, BlockKey: blockKey})
	require.NoError(t, err)

	cfg := httpserver.Config{
		Address:        ":0",
		CSRFCookieName: "csrf_token",
		CSRFHeaderName: "X-CSRF-Token",
		Authenticator:  middleware.DefaultAuthenticator(),
		Sessions:       manager,
		Environment:    "Test",
		Users:          users.NewLocalService(users.NewMemoryRepository()),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	srv := httpserver.New(cfg)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// NewClient returns a cookie-keeping client that does not follow redirects.
func NewClient(t testing.TB) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
