// Package httpserver assembles the portal router, middleware stack and handlers.
package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/portal/internal/portal/config"
	"finitefield.org/portal/internal/portal/httpserver/api"
	custommw "finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/httpserver/ui"
	"finitefield.org/portal/internal/portal/httpx"
	"finitefield.org/portal/internal/portal/rbac"
	"finitefield.org/portal/internal/portal/users"
	"finitefield.org/portal/public"
)

// Config holds runtime options for the portal HTTP server.
type Config struct {
	Address   string
	LoginPath string
	// AuthMode selects which login form fields are rendered.
	AuthMode string
	Logger   *zap.Logger
	// Authenticator verifies login form submissions.
	Authenticator custommw.Authenticator
	// TokenAuthenticator verifies Authorization bearer tokens on guarded routes.
	TokenAuthenticator custommw.Authenticator
	Sessions           custommw.SessionStore
	Users              users.Service
	// Provisioner creates user records at login. Defaults to Users when it implements users.Provisioner.
	Provisioner      users.Provisioner
	Environment      string
	CSRFCookieName   string
	CSRFCookieSecure bool
	CSRFHeaderName   string
	RequestTimeout   time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	Now              func() time.Time
}

// New constructs the HTTP server with middleware stack and embedded assets.
func New(cfg Config) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Sessions == nil {
		panic("httpserver: session store is required")
	}

	loginPath := cfg.LoginPath
	if strings.TrimSpace(loginPath) == "" {
		loginPath = "/login"
	}
	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = custommw.DefaultAuthenticator()
	}
	tokenAuthenticator := cfg.TokenAuthenticator
	if tokenAuthenticator == nil {
		tokenAuthenticator = authenticator
	}
	userService := cfg.Users
	if userService == nil {
		userService = users.NewLocalService(users.NewMemoryRepository())
	}
	provisioner := cfg.Provisioner
	if provisioner == nil {
		provisioner, _ = userService.(users.Provisioner)
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.GetHead)
	router.Use(custommw.RequestLogger(logger))
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(durationOr(cfg.RequestTimeout, 60*time.Second)))

	assets, err := public.Handler()
	if err != nil {
		logger.Fatal("embed static", zap.Error(err))
	}
	router.Handle("/public/static/*", http.StripPrefix("/public/static/", assets))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	authHandlers := newAuthHandlers(authenticator, provisioner, loginPath)
	switch cfg.AuthMode {
	case config.AuthModeFirebase:
		authHandlers.passwordField = false
		authHandlers.tokenField = true
	case config.AuthModePassthrough:
		authHandlers.passwordField = false
	}

	mountPortalRoutes(router, routeOptions{
		TokenAuthenticator: tokenAuthenticator,
		LoginPath:          loginPath,
		Auth:               authHandlers,
		UI:                 ui.NewHandlers(ui.Dependencies{Users: userService, Now: cfg.Now}),
		API:                api.NewUserHandlers(userService),
		Sessions:           cfg.Sessions,
		Environment:        cfg.Environment,
		CSRF: custommw.CSRFConfig{
			CookieName: cfg.CSRFCookieName,
			CookiePath: "/",
			HeaderName: cfg.CSRFHeaderName,
			Secure:     cfg.CSRFCookieSecure,
		},
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  durationOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 60*time.Second),
	}
}

type routeOptions struct {
	TokenAuthenticator custommw.Authenticator
	LoginPath          string
	Auth               *authHandlers
	UI                 *ui.Handlers
	API                *api.UserHandlers
	Sessions           custommw.SessionStore
	Environment        string
	CSRF               custommw.CSRFConfig
}

func mountPortalRoutes(router chi.Router, opts routeOptions) {
	router.Group(func(r chi.Router) {
		r.Use(custommw.RequestContext(opts.Environment))
		r.Use(custommw.Session(opts.Sessions))

		r.Group(func(r chi.Router) {
			r.Use(custommw.CSRF(opts.CSRF))

			r.Get(opts.LoginPath, opts.Auth.LoginForm)
			r.Post(opts.LoginPath, opts.Auth.LoginSubmit)
			r.Post("/logout", opts.Auth.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(custommw.NoStore())
			r.Use(custommw.Auth(opts.TokenAuthenticator, opts.LoginPath))
			r.Use(custommw.CSRF(opts.CSRF))

			r.With(custommw.RequireCapability(rbac.CapHomeView)).Get("/", opts.UI.Home)
			r.With(custommw.RequireCapability(rbac.CapThemeToggle)).Post("/theme", opts.UI.ToggleTheme)
			r.Route("/profile", func(r chi.Router) {
				r.Use(custommw.RequireCapability(rbac.CapProfileSelf))
				r.Get("/", opts.UI.ProfilePage)
				r.Post("/", opts.UI.ProfileSubmit)
			})
			r.Route("/api/users", opts.API.Routes)
		})
	})

	router.NotFound(fallback)
}

// fallback sends unmatched pages home; the guard on / takes over from there.
func fallback(w http.ResponseWriter, r *http.Request) {
	if httpx.IsAPIPath(r.URL.Path) {
		httpx.WriteError(r.Context(), w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
