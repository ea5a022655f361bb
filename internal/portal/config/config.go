package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAddress          = ":8080"
	defaultEnvironment      = "Development"
	defaultLogLevel         = "info"
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultSessionCookie    = "portal_session"
	defaultCSRFCookie       = "portal_csrf"
	defaultSessionIdle      = 30 * time.Minute
	defaultSessionLifetime  = 12 * time.Hour
	defaultSessionRemember  = 30 * 24 * time.Hour
	defaultUsersCacheTTL    = 5 * time.Minute
	defaultJWTIssuer        = "portal"
	configFileEnv           = "PORTAL_CONFIG_FILE"
	authUsersEntrySeparator = ","
)

// Auth modes accepted by AuthConfig.Mode.
const (
	AuthModePassthrough = "passthrough"
	AuthModePassword    = "password"
	AuthModeFirebase    = "firebase"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string        `yaml:"environment"`
	Server      ServerConfig  `yaml:"server"`
	Session     SessionConfig `yaml:"session"`
	Auth        AuthConfig    `yaml:"auth"`
	Users       UsersConfig   `yaml:"users"`
	Log         LogConfig     `yaml:"log"`
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// SessionConfig controls the session cookie and its lifetimes.
type SessionConfig struct {
	CookieName       string        `yaml:"cookieName"`
	CSRFCookieName   string        `yaml:"csrfCookieName"`
	HashKey          string        `yaml:"hashKey"`
	BlockKey         string        `yaml:"blockKey"`
	Secure           bool          `yaml:"secure"`
	IdleTimeout      time.Duration `yaml:"idleTimeout"`
	Lifetime         time.Duration `yaml:"lifetime"`
	RememberLifetime time.Duration `yaml:"rememberLifetime"`
}

// AuthConfig selects how the login page verifies credentials and how bearer tokens are checked.
type AuthConfig struct {
	Mode              string         `yaml:"mode"`
	Users             []PasswordUser `yaml:"users"`
	FirebaseProjectID string         `yaml:"firebaseProjectID"`
	JWTSecret         string         `yaml:"jwtSecret"`
	JWTIssuer         string         `yaml:"jwtIssuer"`
}

// PasswordUser is a statically configured account for password mode.
type PasswordUser struct {
	Email        string   `yaml:"email"`
	Name         string   `yaml:"name"`
	PasswordHash string   `yaml:"passwordHash"`
	Roles        []string `yaml:"roles"`
}

// UsersConfig selects the backing store for the user resource.
type UsersConfig struct {
	APIBaseURL  string        `yaml:"apiBaseURL"`
	APIToken    string        `yaml:"apiToken"`
	DatabaseURL string        `yaml:"databaseURL"`
	RedisAddr   string        `yaml:"redisAddr"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	configFile   string
	envMap       map[string]string
	useSystemEnv bool
}

// WithConfigFile loads a YAML file before applying environment overrides.
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) {
		o.configFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups and
// disables reading the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
		o.useSystemEnv = false
	}
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Environment: defaultEnvironment,
		Server: ServerConfig{
			Address:         defaultAddress,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Session: SessionConfig{
			CookieName:       defaultSessionCookie,
			CSRFCookieName:   defaultCSRFCookie,
			IdleTimeout:      defaultSessionIdle,
			Lifetime:         defaultSessionLifetime,
			RememberLifetime: defaultSessionRemember,
		},
		Auth: AuthConfig{
			Mode:      AuthModePassthrough,
			JWTIssuer: defaultJWTIssuer,
		},
		Users: UsersConfig{
			CacheTTL: defaultUsersCacheTTL,
		},
		Log: LogConfig{Level: defaultLogLevel},
	}
}

// Load resolves configuration: defaults, then the YAML file (if any), then environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}

	lookup := func(key string) string {
		if options.useSystemEnv {
			return strings.TrimSpace(os.Getenv(key))
		}
		return strings.TrimSpace(options.envMap[key])
	}

	cfg := Default()

	file := options.configFile
	if file == "" {
		file = lookup(configFileEnv)
	}
	if file != "" {
		if err := loadFile(file, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) string) error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		v := lookup(key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
			return
		}
		*dst = d
	}
	setBool := func(key string, dst *bool) {
		v := lookup(key)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
			return
		}
		*dst = b
	}

	if port := lookup("PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}
	setString("PORTAL_HTTP_ADDR", &cfg.Server.Address)
	setDuration("PORTAL_HTTP_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("PORTAL_HTTP_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("PORTAL_HTTP_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	setDuration("PORTAL_HTTP_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setString("PORTAL_ENVIRONMENT", &cfg.Environment)
	setString("PORTAL_LOG_LEVEL", &cfg.Log.Level)

	setString("PORTAL_SESSION_COOKIE", &cfg.Session.CookieName)
	setString("PORTAL_CSRF_COOKIE", &cfg.Session.CSRFCookieName)
	setString("PORTAL_SESSION_HASH_KEY", &cfg.Session.HashKey)
	setString("PORTAL_SESSION_BLOCK_KEY", &cfg.Session.BlockKey)
	setBool("PORTAL_SESSION_SECURE", &cfg.Session.Secure)
	setDuration("PORTAL_SESSION_IDLE_TIMEOUT", &cfg.Session.IdleTimeout)
	setDuration("PORTAL_SESSION_LIFETIME", &cfg.Session.Lifetime)
	setDuration("PORTAL_SESSION_REMEMBER_LIFETIME", &cfg.Session.RememberLifetime)

	setString("PORTAL_AUTH_MODE", &cfg.Auth.Mode)
	setString("FIREBASE_PROJECT_ID", &cfg.Auth.FirebaseProjectID)
	setString("PORTAL_JWT_SECRET", &cfg.Auth.JWTSecret)
	setString("PORTAL_JWT_ISSUER", &cfg.Auth.JWTIssuer)
	if raw := lookup("PORTAL_AUTH_USERS"); raw != "" {
		users, err := parseUsers(raw)
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.Auth.Users = users
		}
	}

	setString("PORTAL_USERS_API_URL", &cfg.Users.APIBaseURL)
	setString("PORTAL_USERS_API_TOKEN", &cfg.Users.APIToken)
	setString("PORTAL_DATABASE_URL", &cfg.Users.DatabaseURL)
	setString("PORTAL_REDIS_ADDR", &cfg.Users.RedisAddr)
	setDuration("PORTAL_USERS_CACHE_TTL", &cfg.Users.CacheTTL)

	return errors.Join(errs...)
}

// parseUsers reads "email:hash[:role|role]" entries separated by commas.
func parseUsers(raw string) ([]PasswordUser, error) {
	var users []PasswordUser
	for _, entry := range strings.Split(raw, authUsersEntrySeparator) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("config: PORTAL_AUTH_USERS: malformed entry %q", entry)
		}
		user := PasswordUser{
			Email:        strings.TrimSpace(parts[0]),
			PasswordHash: strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			for _, role := range strings.Split(parts[2], "|") {
				if role = strings.TrimSpace(role); role != "" {
					user.Roles = append(user.Roles, role)
				}
			}
		}
		users = append(users, user)
	}
	return users, nil
}

// Validate reports every missing or invalid field at once.
func (c Config) Validate() error {
	var fields []string

	if strings.TrimSpace(c.Server.Address) == "" {
		fields = append(fields, "server.address")
	}
	for name, d := range map[string]time.Duration{
		"server.readTimeout":       c.Server.ReadTimeout,
		"server.writeTimeout":      c.Server.WriteTimeout,
		"server.idleTimeout":       c.Server.IdleTimeout,
		"server.shutdownTimeout":   c.Server.ShutdownTimeout,
		"session.idleTimeout":      c.Session.IdleTimeout,
		"session.lifetime":         c.Session.Lifetime,
		"session.rememberLifetime": c.Session.RememberLifetime,
	} {
		if d <= 0 {
			fields = append(fields, name)
		}
	}
	if c.Users.CacheTTL < 0 {
		fields = append(fields, "users.cacheTTL")
	}

	if c.Session.HashKey != "" && len(c.Session.HashKey) < 32 {
		fields = append(fields, "session.hashKey")
	}
	switch len(c.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		fields = append(fields, "session.blockKey")
	}

	switch c.Auth.Mode {
	case AuthModePassthrough:
	case AuthModePassword:
		if len(c.Auth.Users) == 0 {
			fields = append(fields, "auth.users")
		}
		for i, u := range c.Auth.Users {
			if strings.TrimSpace(u.Email) == "" || strings.TrimSpace(u.PasswordHash) == "" {
				fields = append(fields, fmt.Sprintf("auth.users[%d]", i))
			}
		}
	case AuthModeFirebase:
		if strings.TrimSpace(c.Auth.FirebaseProjectID) == "" {
			fields = append(fields, "auth.firebaseProjectID")
		}
	default:
		fields = append(fields, "auth.mode")
	}

	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)
	return &ValidationError{fields: fields}
}
