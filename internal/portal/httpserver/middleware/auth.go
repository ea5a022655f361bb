package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"finitefield.org/portal/internal/portal/httpx"
	"finitefield.org/portal/internal/portal/observability"
	"finitefield.org/portal/internal/portal/rbac"
	appsession "finitefield.org/portal/internal/portal/session"
)

type authContextKey string

const userContextKey authContextKey = "auth.user"

// NextParam is the query parameter carrying the navigation intent to the login page.
const NextParam = "next"

// User represents the authenticated account for the current request.
type User struct {
	UID   string
	Email string
	Name  string
	Roles []string
	// Token is set when the request authenticated with a bearer token rather than the session.
	Token string
}

// Credentials carries whatever the caller supplied to prove its identity.
type Credentials struct {
	Email    string
	Password string
	Token    string
}

// Empty reports whether no credential field is set.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Email) == "" && c.Password == "" && strings.TrimSpace(c.Token) == ""
}

// Authenticator resolves credentials into a User.
type Authenticator interface {
	Authenticate(r *http.Request, creds Credentials) (*User, error)
}

var (
	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnsupportedCredentials signals that an authenticator cannot handle the supplied credential kind.
	ErrUnsupportedCredentials = errors.New("unsupported credentials")
)

// AuthError contains reason codes for failed authentication attempts.
type AuthError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError constructs an AuthError with the provided reason.
func NewAuthError(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

// ReasonFor extracts the reason code from err, defaulting to ReasonTokenInvalid.
func ReasonFor(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Reason != "" {
		return authErr.Reason
	}
	return ReasonTokenInvalid
}

const (
	// ReasonMissingToken indicates an auth attempt without credentials.
	ReasonMissingToken = "missing_token"
	// ReasonTokenInvalid indicates a malformed or invalid token.
	ReasonTokenInvalid = "token_invalid"
	// ReasonTokenExpired indicates an expired token which may be recoverable.
	ReasonTokenExpired = "token_expired"
	// ReasonInvalidCredentials indicates an unknown account or wrong password.
	ReasonInvalidCredentials = "invalid_credentials"
)

// DefaultAuthenticator accepts any non-empty email or bearer token and is intended for local development.
func DefaultAuthenticator() Authenticator {
	return &passthroughAuthenticator{}
}

// Chain tries each authenticator in order. Authenticators answering
// ErrUnsupportedCredentials are skipped; the first other outcome wins.
func Chain(authenticators ...Authenticator) Authenticator {
	list := make([]Authenticator, 0, len(authenticators))
	for _, a := range authenticators {
		if a != nil {
			list = append(list, a)
		}
	}
	return chainAuthenticator(list)
}

type chainAuthenticator []Authenticator

func (c chainAuthenticator) Authenticate(r *http.Request, creds Credentials) (*User, error) {
	if creds.Empty() {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}
	for _, a := range c {
		user, err := a.Authenticate(r, creds)
		if errors.Is(err, ErrUnsupportedCredentials) {
			continue
		}
		return user, err
	}
	return nil, NewAuthError(ReasonInvalidCredentials, ErrUnsupportedCredentials)
}

// Auth guards the wrapped handler. A signed-in session passes through; otherwise
// an Authorization bearer token is checked with authenticator. Unauthenticated
// page requests are redirected to loginPath with the requested location in the
// next query parameter.
func Auth(authenticator Authenticator, loginPath string) func(http.Handler) http.Handler {
	if authenticator == nil {
		authenticator = DefaultAuthenticator()
	}
	if loginPath == "" {
		loginPath = "/login"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := observability.FromContext(r.Context())

			if sess, ok := SessionFromContext(r.Context()); ok && sess.IsAuthenticated() {
				su := sess.User()
				user := &User{
					UID:   su.UID,
					Email: su.Email,
					Name:  su.Name,
					Roles: append([]string(nil), su.Roles...),
				}
				next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
				return
			}

			token := parseBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				logger.Debug("auth guard: no session", zap.String("path", r.URL.Path))
				handleUnauthorized(w, r, loginPath, ReasonMissingToken)
				return
			}

			user, err := authenticator.Authenticate(r, Credentials{Token: token})
			if err != nil || user == nil {
				reason := ReasonFor(err)
				if err == nil {
					err = ErrUnauthorized
				}
				logger.Info("auth failure", zap.String("reason", reason), zap.Error(err))
				handleUnauthorized(w, r, loginPath, reason)
				return
			}
			user.Roles = effectiveRoles(user.Roles)
			user.Token = token
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// ContextWithUser attaches user to ctx.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user if present.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok && user != nil
}

// SessionUser converts an authenticated User into the session representation.
func SessionUser(user *User) *appsession.User {
	if user == nil {
		return nil
	}
	return &appsession.User{
		UID:   user.UID,
		Email: user.Email,
		Name:  user.Name,
		Roles: effectiveRoles(user.Roles),
	}
}

// effectiveRoles copies roles, granting rbac.DefaultRole when none are set.
func effectiveRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		if role = strings.TrimSpace(role); role != "" {
			out = append(out, role)
		}
	}
	if len(out) == 0 {
		out = append(out, string(rbac.DefaultRole))
	}
	return out
}

// LoginRedirectURL builds the login location carrying target as navigation intent.
func LoginRedirectURL(loginPath, target, reason string) string {
	u, err := url.Parse(loginPath)
	if err != nil {
		return loginPath
	}
	q := u.Query()
	if target != "" {
		q.Set(NextParam, target)
	}
	if reason == ReasonTokenExpired {
		q.Set("reason", "expired")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func handleUnauthorized(w http.ResponseWriter, r *http.Request, loginPath, reason string) {
	if reason == "" {
		reason = ReasonTokenInvalid
	}

	if httpx.IsAPIPath(r.URL.Path) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="portal"`)
		httpx.WriteError(r.Context(), w, httpx.NewError(reason, "authentication required", http.StatusUnauthorized))
		return
	}

	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", LoginRedirectURL(loginPath, htmxIntent(r), reason))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	http.Redirect(w, r, LoginRedirectURL(loginPath, requestIntent(r), reason), http.StatusFound)
}

// requestIntent returns the blocked location. Only GET and HEAD record one.
func requestIntent(r *http.Request) string {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return ""
	}
	return r.URL.RequestURI()
}

func htmxIntent(r *http.Request) string {
	current := RequestInfoFromContext(r.Context()).CurrentURL
	if current == "" {
		return requestIntent(r)
	}
	u, err := url.Parse(current)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return ""
	}
	return u.RequestURI()
}

type passthroughAuthenticator struct{}

func (p *passthroughAuthenticator) Authenticate(_ *http.Request, creds Credentials) (*User, error) {
	if token := strings.TrimSpace(creds.Token); token != "" {
		return &User{
			UID:   token,
			Roles: []string{string(rbac.DefaultRole)},
		}, nil
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}
	name := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		name = email[:at]
	}
	return &User{
		UID:   email,
		Email: email,
		Name:  name,
		Roles: []string{string(rbac.DefaultRole)},
	}, nil
}
