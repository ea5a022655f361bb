package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	custommw "finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/observability"
	appsession "finitefield.org/portal/internal/portal/session"
	"finitefield.org/portal/internal/portal/templates/auth"
	"finitefield.org/portal/internal/portal/users"
)

type authHandlers struct {
	authenticator custommw.Authenticator
	provisioner   users.Provisioner
	loginPath     string
	passwordField bool
	tokenField    bool
}

func newAuthHandlers(authenticator custommw.Authenticator, provisioner users.Provisioner, loginPath string) *authHandlers {
	if authenticator == nil {
		panic("auth: authenticator is required")
	}
	if strings.TrimSpace(loginPath) == "" {
		loginPath = "/login"
	}
	return &authHandlers{
		authenticator: authenticator,
		provisioner:   provisioner,
		loginPath:     loginPath,
		passwordField: true,
	}
}

// LoginForm always renders, including for visitors who already hold a session.
func (h *authHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	data := h.buildLoginPageData(r, nil)
	h.renderLoginPage(w, r, data, http.StatusOK)
}

func (h *authHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		state := &loginFormState{Error: "The form could not be submitted. Please try again."}
		h.renderLoginPage(w, r, h.buildLoginPageData(r, state), http.StatusBadRequest)
		return
	}

	creds := custommw.Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Token:    strings.TrimSpace(r.PostFormValue("id_token")),
	}
	state := &loginFormState{
		Email:    creds.Email,
		Remember: parseCheckbox(r.PostFormValue("remember")),
		Next:     r.PostFormValue(custommw.NextParam),
	}

	if creds.Empty() {
		state.Error = "Enter your email address to sign in."
		h.renderLoginPage(w, r, h.buildLoginPageData(r, state), http.StatusBadRequest)
		return
	}

	user, err := h.authenticator.Authenticate(r, creds)
	if err != nil || user == nil {
		if err == nil {
			err = custommw.ErrUnauthorized
		}
		logger.Info("login failed", zap.String("reason", custommw.ReasonFor(err)), zap.Error(err))
		state.Error = errorMessageFor(err)
		h.renderLoginPage(w, r, h.buildLoginPageData(r, state), http.StatusUnauthorized)
		return
	}
	if user.Email == "" {
		user.Email = creds.Email
	}

	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.Login(custommw.SessionUser(user))
		sess.SetRememberMe(state.Remember)
	}

	if h.provisioner != nil {
		if _, err := h.provisioner.Provision(r.Context(), users.User{
			ID:    user.UID,
			Name:  user.Name,
			Email: user.Email,
		}); err != nil {
			logger.Warn("provision user record failed", zap.String("uid", user.UID), zap.Error(err))
		}
	}

	target := h.redirectTarget(state.Next)
	logger.Info("login succeeded", zap.String("uid", user.UID), zap.String("next", target))
	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout signs the user out. A session that only held the default theme is
// dropped entirely; a stored theme preference keeps the cookie alive.
func (h *authHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		if sess.Theme() == appsession.ThemeLight {
			sess.Destroy()
		} else {
			sess.Logout()
		}
	}

	redirect := h.loginURLWithParams(map[string]string{"status": "logged_out"})
	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", redirect)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

type loginFormState struct {
	Email    string
	Remember bool
	Next     string
	Error    string
}

func (h *authHandlers) buildLoginPageData(r *http.Request, state *loginFormState) auth.LoginPageData {
	q := r.URL.Query()
	data := auth.LoginPageData{
		LoginPath:     h.loginPath,
		CSRFToken:     custommw.CSRFTokenFromContext(r.Context()),
		PasswordField: h.passwordField,
		TokenField:    h.tokenField,
		Message:       messageForQuery(q),
		Next:          h.normalizeNext(q.Get(custommw.NextParam)),
		Email:         strings.TrimSpace(q.Get("email")),
	}

	sess, ok := custommw.SessionFromContext(r.Context())
	if ok && sess.IsAuthenticated() {
		su := sess.User()
		data.SignedInAs = firstNonEmpty(su.Email, su.Name, su.UID)
	}

	if state != nil {
		data.Email = state.Email
		data.Remember = state.Remember
		data.Error = state.Error
		data.Next = h.normalizeNext(state.Next)
		data.Message = ""
	} else if ok {
		data.Remember = sess.RememberMe()
	}
	return data
}

func (h *authHandlers) renderLoginPage(w http.ResponseWriter, r *http.Request, data auth.LoginPageData, status int) {
	templ.Handler(auth.LoginPage(data), templ.WithStatus(status)).ServeHTTP(w, r)
}

func errorMessageFor(err error) string {
	var authErr *custommw.AuthError
	if errors.As(err, &authErr) {
		switch authErr.Reason {
		case custommw.ReasonTokenExpired:
			return "Your sign-in token has expired. Please sign in again."
		case custommw.ReasonMissingToken:
			return "Credentials are missing. Please check and try again."
		case custommw.ReasonInvalidCredentials:
			return "Email or password is incorrect."
		}
	}
	return "Sign-in failed. Please check your details and try again."
}

func messageForQuery(q url.Values) string {
	if q.Get("status") == "logged_out" {
		return "You have been logged out."
	}
	switch q.Get("reason") {
	case custommw.ReasonTokenExpired, "expired":
		return "Your session has expired. Please sign in again."
	case custommw.ReasonTokenInvalid:
		return "Your sign-in details were not accepted. Please try again."
	}
	return ""
}

// redirectTarget consumes the recorded intent, falling back to the home page.
func (h *authHandlers) redirectTarget(raw string) string {
	if next := h.normalizeNext(raw); next != "" {
		return next
	}
	return "/"
}

func (h *authHandlers) loginURLWithParams(params map[string]string) string {
	parsed, err := url.Parse(h.loginPath)
	if err != nil {
		return h.loginPath
	}
	q := parsed.Query()
	for key, val := range params {
		if strings.TrimSpace(val) == "" {
			continue
		}
		q.Set(key, val)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func parseCheckbox(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on", "yes":
		return true
	default:
		return false
	}
}

func (h *authHandlers) normalizeNext(raw string) string {
	sanitized := sanitizeNextTarget(raw)
	if sanitized == "" {
		return ""
	}
	if samePath(pathOnly(sanitized), h.loginPath) {
		return ""
	}
	return sanitized
}

// sanitizeNextTarget accepts only same-origin absolute paths.
func sanitizeNextTarget(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" || parsed.Host != "" || parsed.Opaque != "" {
		return ""
	}

	pathValue := parsed.Path
	if pathValue == "" {
		pathValue = "/"
	}
	if strings.Contains(pathValue, "\\") {
		return ""
	}

	cleaned := path.Clean(pathValue)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	if strings.HasPrefix(cleaned, "//") {
		return ""
	}

	target := (&url.URL{Path: cleaned}).EscapedPath()
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		target += "#" + parsed.Fragment
	}
	return target
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	trim := func(p string) string {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		for len(p) > 1 && strings.HasSuffix(p, "/") {
			p = strings.TrimSuffix(p, "/")
		}
		return p
	}
	return trim(a) == trim(b)
}

func pathOnly(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
