package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"finitefield.org/portal/internal/portal/cache"
	"finitefield.org/portal/internal/portal/config"
	"finitefield.org/portal/internal/portal/httpserver"
	"finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/observability"
	"finitefield.org/portal/internal/portal/session"
	"finitefield.org/portal/internal/portal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("portal exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := buildSessions(cfg.Session, logger)
	if err != nil {
		return err
	}

	loginAuth, err := buildLoginAuthenticator(ctx, cfg.Auth, logger)
	if err != nil {
		return err
	}
	tokenAuth, err := buildTokenAuthenticator(cfg.Auth, loginAuth, logger)
	if err != nil {
		return err
	}

	userService, cleanup, err := buildUsers(ctx, cfg.Users, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := httpserver.New(httpserver.Config{
		Address:            cfg.Server.Address,
		AuthMode:           cfg.Auth.Mode,
		Logger:             logger,
		Authenticator:      loginAuth,
		TokenAuthenticator: tokenAuth,
		Sessions:           sessions,
		Users:              userService,
		Environment:        cfg.Environment,
		CSRFCookieName:     cfg.Session.CSRFCookieName,
		CSRFCookieSecure:   cfg.Session.Secure,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("portal listening",
		zap.String("addr", cfg.Server.Address),
		zap.String("environment", cfg.Environment),
		zap.String("auth_mode", cfg.Auth.Mode),
	)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("portal stopped")
	return nil
}

func buildSessions(cfg config.SessionConfig, logger *zap.Logger) (*session.Manager, error) {
	hashKey, blockKey := []byte(cfg.HashKey), []byte(cfg.BlockKey)
	if len(hashKey) == 0 {
		logger.Warn("session hash key not configured; sessions will not survive a restart")
		hashKey, blockKey = session.GenerateKeys()
	}
	manager, err := session.NewManager(session.Config{
		CookieName:       cfg.CookieName,
		HashKey:          hashKey,
		BlockKey:         blockKey,
		CookieSecure:     cfg.Secure,
		IdleTimeout:      cfg.IdleTimeout,
		Lifetime:         cfg.Lifetime,
		RememberLifetime: cfg.RememberLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	return manager, nil
}

func buildLoginAuthenticator(ctx context.Context, cfg config.AuthConfig, logger *zap.Logger) (middleware.Authenticator, error) {
	switch cfg.Mode {
	case config.AuthModePassword:
		accounts := make([]middleware.PasswordAccount, 0, len(cfg.Users))
		for _, u := range cfg.Users {
			accounts = append(accounts, middleware.PasswordAccount{
				Email:        u.Email,
				Name:         u.Name,
				PasswordHash: u.PasswordHash,
				Roles:        u.Roles,
			})
		}
		auth, err := middleware.NewPasswordAuthenticator(accounts)
		if err != nil {
			return nil, fmt.Errorf("password authenticator: %w", err)
		}
		logger.Info("password authenticator enabled", zap.Int("accounts", len(accounts)))
		return auth, nil
	case config.AuthModeFirebase:
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID})
		if err != nil {
			return nil, fmt.Errorf("firebase app: %w", err)
		}
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase auth client: %w", err)
		}
		logger.Info("firebase authenticator enabled", zap.String("project", cfg.FirebaseProjectID))
		return middleware.NewFirebaseAuthenticator(client), nil
	default:
		logger.Warn("passthrough authenticator enabled; any email signs in")
		return middleware.DefaultAuthenticator(), nil
	}
}

// buildTokenAuthenticator accepts portal-issued JWTs ahead of the login authenticator.
func buildTokenAuthenticator(cfg config.AuthConfig, login middleware.Authenticator, logger *zap.Logger) (middleware.Authenticator, error) {
	if cfg.JWTSecret == "" {
		return login, nil
	}
	jwtAuth, err := middleware.NewJWTAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return nil, fmt.Errorf("jwt authenticator: %w", err)
	}
	logger.Info("jwt bearer tokens enabled", zap.String("issuer", cfg.JWTIssuer))
	if cfg.Mode == config.AuthModeFirebase {
		return middleware.Chain(jwtAuth, login), nil
	}
	return jwtAuth, nil
}

func buildUsers(ctx context.Context, cfg config.UsersConfig, logger *zap.Logger) (users.Service, func(), error) {
	var (
		inner   users.Service
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch {
	case cfg.APIBaseURL != "":
		var opts []users.HTTPOption
		if cfg.APIToken != "" {
			opts = append(opts, users.WithBearerToken(cfg.APIToken))
		}
		svc, err := users.NewHTTPService(cfg.APIBaseURL, nil, opts...)
		if err != nil {
			return nil, cleanup, fmt.Errorf("users http client: %w", err)
		}
		logger.Info("users backed by remote API", zap.String("base_url", cfg.APIBaseURL))
		inner = svc
	case cfg.DatabaseURL != "":
		pool, err := users.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, pool.Close)
		repo := users.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		logger.Info("users backed by postgres")
		inner = users.NewLocalService(repo)
	default:
		logger.Info("users backed by in-memory repository")
		inner = users.NewLocalService(users.NewMemoryRepository())
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, func() { _ = client.Close() })
		redisStore := cache.NewRedisStore(client, "portal")
		if err := redisStore.Ping(ctx); err != nil {
			logger.Warn("redis unreachable; user cache falls back to memory", zap.Error(err))
			store = cache.NewMemoryStore()
		} else {
			logger.Info("user cache backed by redis", zap.String("addr", cfg.RedisAddr))
			store = redisStore
		}
	} else {
		store = cache.NewMemoryStore()
	}

	return users.NewCachedService(inner, store, cfg.CacheTTL, logger), cleanup, nil
}
