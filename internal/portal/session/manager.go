package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	defaultCookieName       = "portal_session"
	defaultCookiePath       = "/"
	defaultLifetime         = 12 * time.Hour
	defaultRememberLifetime = 30 * 24 * time.Hour
	defaultIdleTimeout      = 30 * time.Minute
	// touchInterval bounds how often LastActive alone forces a cookie rewrite.
	touchInterval = time.Minute
)

// Theme values accepted by Session.SetTheme.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ErrExpired indicates the stored session is no longer valid due to idle or absolute expiry.
var ErrExpired = errors.New("session expired")

// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// User captures the signed-in account persisted in the session.
type User struct {
	UID   string   `json:"uid"`
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Data represents the full persisted session payload.
type Data struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActive      time.Time `json:"lastActive"`
	ExpiresAt       time.Time `json:"expiresAt,omitempty"`
	RememberMe      bool      `json:"rememberMe"`
	User            *User     `json:"user,omitempty"`
	AuthenticatedAt time.Time `json:"authenticatedAt,omitempty"`
	Theme           string    `json:"theme,omitempty"`
}

// Session holds mutable state for the current request lifecycle. It is the
// only owner of the authentication flag: callers flip it through Login and
// Logout and read it through IsAuthenticated.
type Session struct {
	data      Data
	dirty     bool
	destroyed bool
	cfg       *Config
	now       func() time.Time
}

// Config controls cookie encoding and lifecycle limits for the session manager.
type Config struct {
	CookieName     string
	HashKey        []byte
	BlockKey       []byte
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieHTTPOnly *bool
	CookieSameSite http.SameSite

	IdleTimeout      time.Duration
	Lifetime         time.Duration
	RememberLifetime time.Duration
	Now              func() time.Time
}

// Manager decodes and persists session state via signed (and optionally encrypted) cookies.
type Manager struct {
	cfg      Config
	codec    *securecookie.SecureCookie
	now      func() time.Time
	httpOnly bool
}

// NewManager constructs a Manager using the provided configuration.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: hash key is required", ErrInvalidConfig)
	}
	switch len(cfg.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}

	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.RememberLifetime <= 0 {
		cfg.RememberLifetime = defaultRememberLifetime
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})

	httpOnly := true
	if cfg.CookieHTTPOnly != nil {
		httpOnly = *cfg.CookieHTTPOnly
	}

	return &Manager{
		cfg:      cfg,
		codec:    codec,
		now:      nowFn,
		httpOnly: httpOnly,
	}, nil
}

// GenerateKeys returns random hash and block keys for processes that were not
// given persistent ones. Sessions signed with them do not survive a restart.
func GenerateKeys() (hashKey, blockKey []byte) {
	return securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32)
}

// Load retrieves the session from the incoming request or creates a new one.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.newSession(m.now()), nil
	}

	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil {
		return m.newSession(m.now()), nil
	}

	sess := m.sessionFromData(stored)
	if m.isExpired(sess, m.now()) {
		return nil, ErrExpired
	}
	return sess, nil
}

// Save writes the session back to the response as a cookie. Destroyed sessions
// clear the cookie; unchanged sessions are left alone.
func (m *Manager) Save(w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return errors.New("session: nil session")
	}

	if sess.destroyed {
		http.SetCookie(w, m.expiredCookie())
		return nil
	}

	sess.Touch(m.now())
	if !sess.Dirty() {
		return nil
	}
	data := sess.data

	encoded, err := m.codec.Encode(m.cfg.CookieName, data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	cookie := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		Secure:   m.cfg.CookieSecure,
		HttpOnly: m.httpOnly,
		SameSite: m.cfg.CookieSameSite,
	}

	if !data.ExpiresAt.IsZero() {
		expiry := data.ExpiresAt.UTC()
		cookie.Expires = expiry
		remaining := expiry.Sub(m.now())
		if remaining <= 0 {
			cookie.MaxAge = -1
		} else {
			cookie.MaxAge = int(remaining.Round(time.Second).Seconds())
		}
	}

	http.SetCookie(w, cookie)
	sess.dirty = false
	return nil
}

// Destroy invalidates the session cookie immediately.
func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, m.expiredCookie())
}

// New returns a new empty session instance using the manager configuration.
func (m *Manager) New() *Session {
	return m.newSession(m.now())
}

func (m *Manager) newSession(now time.Time) *Session {
	data := Data{
		ID:         mustGenerateToken(32),
		CreatedAt:  now.UTC(),
		LastActive: now.UTC(),
		Theme:      ThemeLight,
	}
	data.ExpiresAt = m.cfg.computeExpiry(now, false)

	return &Session{
		data:  data,
		dirty: true,
		cfg:   &m.cfg,
		now:   m.now,
	}
}

func (m *Manager) sessionFromData(d Data) *Session {
	dirty := false
	if d.ID == "" {
		d.ID = mustGenerateToken(32)
		d.CreatedAt = m.now().UTC()
		d.LastActive = d.CreatedAt
		d.ExpiresAt = m.cfg.computeExpiry(d.CreatedAt, d.RememberMe)
		dirty = true
	}
	if normaliseTheme(d.Theme) == "" {
		d.Theme = ThemeLight
		dirty = true
	}
	return &Session{
		data:  d,
		dirty: dirty,
		cfg:   &m.cfg,
		now:   m.now,
	}
}

func (m *Manager) isExpired(sess *Session, now time.Time) bool {
	if sess == nil {
		return true
	}
	now = now.UTC()

	if !sess.data.ExpiresAt.IsZero() && now.After(sess.data.ExpiresAt.UTC()) {
		return true
	}

	if m.cfg.IdleTimeout > 0 {
		last := sess.data.LastActive
		if last.IsZero() {
			last = sess.data.CreatedAt
		}
		if !last.IsZero() && now.Sub(last) > m.cfg.IdleTimeout {
			return true
		}
	}
	return false
}

func (m *Manager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: m.httpOnly,
		SameSite: m.cfg.CookieSameSite,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.data.ID
}

// CreatedAt returns the session creation timestamp.
func (s *Session) CreatedAt() time.Time {
	return s.data.CreatedAt
}

// LastActive returns the last access timestamp.
func (s *Session) LastActive() time.Time {
	return s.data.LastActive
}

// ExpiresAt returns the absolute expiry timestamp for the session.
func (s *Session) ExpiresAt() time.Time {
	return s.data.ExpiresAt
}

// AuthenticatedAt returns when Login last switched the session to authenticated.
func (s *Session) AuthenticatedAt() time.Time {
	return s.data.AuthenticatedAt
}

// RememberMe indicates whether the session should persist beyond the default lifetime.
func (s *Session) RememberMe() bool {
	return s.data.RememberMe
}

// SetRememberMe toggles the remember-me state and adjusts expiry accordingly.
func (s *Session) SetRememberMe(remember bool) {
	if s.data.RememberMe == remember {
		return
	}
	s.data.RememberMe = remember
	s.data.ExpiresAt = s.cfg.computeExpiry(s.lifetimeStart(), remember)
	s.dirty = true
}

// lifetimeStart is the instant the absolute lifetime counts from: sign-in for
// authenticated sessions, creation otherwise.
func (s *Session) lifetimeStart() time.Time {
	if !s.data.AuthenticatedAt.IsZero() {
		return s.data.AuthenticatedAt
	}
	return s.data.CreatedAt
}

// IsAuthenticated reports whether a user is signed in. Nil sessions and
// sessions without a user UID are unauthenticated.
func (s *Session) IsAuthenticated() bool {
	if s == nil || s.destroyed {
		return false
	}
	return s.data.User != nil && strings.TrimSpace(s.data.User.UID) != ""
}

// Login marks the session authenticated for user. Repeated calls for the same
// user are no-ops; switching from anonymous to authenticated rotates the
// session ID and restarts the absolute lifetime.
func (s *Session) Login(user *User) {
	if user == nil || strings.TrimSpace(user.UID) == "" {
		return
	}
	if s.IsAuthenticated() && equalUsers(s.data.User, user) {
		return
	}
	if !s.IsAuthenticated() || s.data.User.UID != user.UID {
		s.data.ID = mustGenerateToken(32)
		s.data.AuthenticatedAt = s.clock().UTC()
		s.data.ExpiresAt = s.cfg.computeExpiry(s.data.AuthenticatedAt, s.data.RememberMe)
		s.dirty = true
	}
	s.setUser(user)
	s.destroyed = false
}

// Logout clears the user and rotates the session ID. Theme and remember-me
// preferences survive.
func (s *Session) Logout() {
	if !s.IsAuthenticated() {
		return
	}
	s.data.User = nil
	s.data.AuthenticatedAt = time.Time{}
	s.data.ID = mustGenerateToken(32)
	s.dirty = true
}

// User returns the persisted user profile, if present.
func (s *Session) User() *User {
	return s.data.User
}

// SetUser refreshes the stored profile without changing authentication state
// semantics; a nil user is equivalent to Logout.
func (s *Session) SetUser(user *User) {
	if user == nil {
		s.Logout()
		return
	}
	s.setUser(user)
}

func (s *Session) setUser(user *User) {
	if equalUsers(s.data.User, user) {
		return
	}
	copied := *user
	if copied.Roles != nil {
		copied.Roles = append([]string(nil), copied.Roles...)
	}
	s.data.User = &copied
	s.dirty = true
}

// Theme returns the stored colour theme.
func (s *Session) Theme() string {
	if theme := normaliseTheme(s.data.Theme); theme != "" {
		return theme
	}
	return ThemeLight
}

// SetTheme stores theme; unknown values are ignored and reported as false.
func (s *Session) SetTheme(theme string) bool {
	theme = normaliseTheme(theme)
	if theme == "" {
		return false
	}
	if s.data.Theme != theme {
		s.data.Theme = theme
		s.dirty = true
	}
	return true
}

// ToggleTheme flips between light and dark and returns the new value.
func (s *Session) ToggleTheme() string {
	next := ThemeDark
	if s.Theme() == ThemeDark {
		next = ThemeLight
	}
	s.SetTheme(next)
	return next
}

// Destroy marks the session for deletion at the end of the request.
func (s *Session) Destroy() {
	s.destroyed = true
	s.dirty = true
}

// Touch updates the last active timestamp at most once per touchInterval.
func (s *Session) Touch(now time.Time) {
	now = now.UTC()
	if now.Sub(s.data.LastActive) >= touchInterval {
		s.data.LastActive = now
		s.dirty = true
	}
}

// Dirty indicates whether the session contents have changed during this request.
func (s *Session) Dirty() bool {
	return s.dirty
}

func (s *Session) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (cfg *Config) computeExpiry(from time.Time, remember bool) time.Time {
	if cfg == nil {
		return time.Time{}
	}
	from = from.UTC()
	lifetime := cfg.Lifetime
	if remember {
		lifetime = cfg.RememberLifetime
		if lifetime <= 0 {
			lifetime = cfg.Lifetime
		}
	}
	if lifetime <= 0 {
		return time.Time{}
	}
	return from.Add(lifetime).UTC()
}

func normaliseTheme(theme string) string {
	switch strings.ToLower(strings.TrimSpace(theme)) {
	case ThemeLight:
		return ThemeLight
	case ThemeDark:
		return ThemeDark
	default:
		return ""
	}
}

func equalUsers(a, b *User) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.UID != b.UID || a.Email != b.Email || a.Name != b.Name {
		return false
	}
	if len(a.Roles) != len(b.Roles) {
		return false
	}
	for i := range a.Roles {
		if a.Roles[i] != b.Roles[i] {
			return false
		}
	}
	return true
}

func mustGenerateToken(length int) string {
	token, err := generateToken(length)
	if err != nil {
		panic(err)
	}
	return token
}

func generateToken(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
