package httpserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"finitefield.org/portal/internal/portal/cache"
	"finitefield.org/portal/internal/portal/config"
	"finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/testutil"
	"finitefield.org/portal/internal/portal/users"
)

const jwtSecret = "integration-secret-with-at-least-32-bytes"

func TestGuardRedirectsToLoginWithIntent(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)

	cases := map[string]string{
		"/":                "/login?next=%2F",
		"/profile?tab=edit": "/login?next=%2Fprofile%3Ftab%3Dedit",
	}
	for target, want := range cases {
		resp := get(t, client, ts.URL+target)
		require.Equal(t, http.StatusFound, resp.StatusCode, target)
		require.Equal(t, want, resp.Header.Get("Location"), target)
	}
}

func TestGuardAnswersHEADWithLoginRedirect(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp, err := testutil.NewClient(t).Head(ts.URL + "/")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login?next=%2F", resp.Header.Get("Location"))
}

func TestGuardRespondsToHTMXWithRedirectHeader(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/profile", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")

	resp, err := testutil.NewClient(t).Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "/login?next=%2Fprofile", resp.Header.Get("HX-Redirect"))
}

func TestLoginRoundTripReturnsToIntent(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)

	blocked := get(t, client, ts.URL+"/profile?tab=edit")
	require.Equal(t, http.StatusFound, blocked.StatusCode)

	loginPage := get(t, client, ts.URL+blocked.Header.Get("Location"))
	require.Equal(t, http.StatusOK, loginPage.StatusCode)
	doc := parse(t, loginPage)
	require.Equal(t, "/profile?tab=edit", doc.Find(`form[data-login-form] input[name="next"]`).AttrOr("value", ""))

	resp := submitLogin(t, client, ts.URL, doc, url.Values{"email": {"ada@example.com"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/profile?tab=edit", resp.Header.Get("Location"))

	home := get(t, client, ts.URL+"/")
	require.Equal(t, http.StatusOK, home.StatusCode)
	homeDoc := parse(t, home)
	require.Contains(t, homeDoc.Find("[data-home]").Text(), "This is the homepage")
	require.Equal(t, "ada@example.com", homeDoc.Find(`[data-field="email"]`).Text())
	require.Equal(t, "no-store, max-age=0", home.Header.Get("Cache-Control"))
}

func TestDirectLoginDefaultsToHome(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)

	resp := login(t, client, ts.URL, "", url.Values{"email": {"ada@example.com"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestLoginRejectsOffsiteIntent(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)

	for _, next := range []string{"//evil.example/path", "https://evil.example/", "/login", `/\evil.example`} {
		page := get(t, client, ts.URL+"/login")
		resp := submitLogin(t, client, ts.URL, parse(t, page), url.Values{
			"email": {"ada@example.com"},
			"next":  {next},
		})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode, next)
		require.Equal(t, "/", resp.Header.Get("Location"), next)
	}
}

func TestUnknownPathRedirectsHomeThenLogin(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)

	first := get(t, client, ts.URL+"/xyz")
	require.Equal(t, http.StatusFound, first.StatusCode)
	require.Equal(t, "/", first.Header.Get("Location"))

	second := get(t, client, ts.URL+first.Header.Get("Location"))
	require.Equal(t, http.StatusFound, second.StatusCode)
	require.Equal(t, "/login?next=%2F", second.Header.Get("Location"))
}

func TestUnknownAPIPathReturnsJSONNotFound(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp := get(t, testutil.NewClient(t), ts.URL+"/api/nothing")

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	payload := decodeJSON(t, resp)
	require.Equal(t, "not_found", payload["error"])
}

func TestLoginIsIdempotent(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)

	for i := 0; i < 2; i++ {
		resp := login(t, client, ts.URL, "", url.Values{"email": {"ada@example.com"}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, "/", resp.Header.Get("Location"))

		home := get(t, client, ts.URL+"/")
		require.Equal(t, http.StatusOK, home.StatusCode)
	}
}

func TestLoginPageRendersWhenAuthenticated(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)
	login(t, client, ts.URL, "", url.Values{"email": {"ada@example.com"}})

	resp := get(t, client, ts.URL+"/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := parse(t, resp)
	require.Equal(t, 1, doc.Find("form[data-login-form]").Length())
	require.Contains(t, doc.Find(`[data-alert="neutral"]`).Text(), "ada@example.com")
}

func TestLoginFailureRendersError(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	passwords, err := middleware.NewPasswordAuthenticator([]middleware.PasswordAccount{{
		Email:        "ada@example.com",
		Name:         "Ada",
		PasswordHash: string(hash),
	}})
	require.NoError(t, err)

	ts := testutil.NewServer(t, testutil.WithAuthenticator(passwords), testutil.WithAuthMode(config.AuthModePassword))
	client := testutil.NewClient(t)

	resp := login(t, client, ts.URL, "/profile", url.Values{
		"email":    {"ada@example.com"},
		"password": {"wrong"},
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	doc := parse(t, resp)
	require.Equal(t, "Email or password is incorrect.", strings.TrimSpace(doc.Find(`[data-alert="danger"]`).Text()))
	require.Equal(t, "/profile", doc.Find(`input[name="next"]`).AttrOr("value", ""))
	require.Equal(t, "ada@example.com", doc.Find(`input[name="email"]`).AttrOr("value", ""))

	blocked := get(t, client, ts.URL+"/")
	require.Equal(t, http.StatusFound, blocked.StatusCode, "failed login must not authenticate")

	ok := login(t, client, ts.URL, "/profile", url.Values{
		"email":    {"ada@example.com"},
		"password": {"correct horse"},
	})
	require.Equal(t, http.StatusSeeOther, ok.StatusCode)
	require.Equal(t, "/profile", ok.Header.Get("Location"))
}

func TestLoginWithoutCredentialsIsBadRequest(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)

	resp := login(t, client, ts.URL, "", url.Values{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginRequiresCSRFToken(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)

	resp, err := client.PostForm(ts.URL+"/login", url.Values{"email": {"ada@example.com"}})
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLogoutClearsAuthentication(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)
	login(t, client, ts.URL, "", url.Values{"email": {"ada@example.com"}})

	home := get(t, client, ts.URL+"/")
	require.Equal(t, http.StatusOK, home.StatusCode)
	doc := parse(t, home)

	resp := postForm(t, client, ts.URL+"/logout", url.Values{
		"_csrf": {doc.Find(`[data-user-menu-logout] input[name="_csrf"]`).AttrOr("value", "")},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login?status=logged_out", resp.Header.Get("Location"))
	cleared := findCookie(resp.Cookies(), "portal_session")
	require.NotNil(t, cleared, "default-theme logout should drop the session cookie")
	require.Less(t, cleared.MaxAge, 0)

	after := get(t, client, ts.URL+"/")
	require.Equal(t, http.StatusFound, after.StatusCode)

	page := get(t, client, ts.URL+"/login?status=logged_out")
	require.Contains(t, parse(t, page).Find(`[data-alert="success"]`).Text(), "logged out")
}

func TestLogoutKeepsThemePreference(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)
	login(t, client, ts.URL, "", url.Values{"email": {"ada@example.com"}})

	doc := parse(t, get(t, client, ts.URL+"/"))
	resp := postForm(t, client, ts.URL+"/theme", url.Values{"_csrf": {csrfFrom(doc)}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	doc = parse(t, get(t, client, ts.URL+"/"))
	resp = postForm(t, client, ts.URL+"/logout", url.Values{"_csrf": {csrfFrom(doc)}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	require.Equal(t, http.StatusFound, get(t, client, ts.URL+"/").StatusCode)
	page := parse(t, get(t, client, ts.URL+"/login?status=logged_out"))
	require.Equal(t, "dark", page.Find("html").AttrOr("data-theme", ""))
}

func TestSessionUserWithBearerHeaderStillNeedsCSRF(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)
	login(t, client, ts.URL, "", url.Values{"email": {"ada@example.com"}})

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/theme", strings.NewReader(url.Values{}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer ada@example.com")
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestThemeToggleRoundTrip(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)
	login(t, client, ts.URL, "", url.Values{"email": {"ada@example.com"}})

	doc := parse(t, get(t, client, ts.URL+"/"))
	require.Equal(t, "light", doc.Find("html").AttrOr("data-theme", ""))

	resp := postForm(t, client, ts.URL+"/theme", url.Values{"_csrf": {csrfFrom(doc)}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	doc = parse(t, get(t, client, ts.URL+"/"))
	require.Equal(t, "dark", doc.Find("html").AttrOr("data-theme", ""))
	require.Equal(t, "Light mode", strings.TrimSpace(doc.Find("[data-theme-toggle]").Text()))
}

func TestProfileUpdateInvalidatesCachedUser(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	service := users.NewCachedService(users.NewLocalService(users.NewMemoryRepository()), store, time.Minute, zap.NewNop())
	ts := testutil.NewServer(t, testutil.WithUsers(service))
	client := testutil.NewClient(t)
	login(t, client, ts.URL, "", url.Values{"email": {"ada@example.com"}})

	page := parse(t, get(t, client, ts.URL+"/profile"))
	require.Equal(t, "ada", page.Find(`input[name="name"]`).AttrOr("value", ""))
	_, err := store.Get(context.Background(), users.CacheKey("ada@example.com"))
	require.NoError(t, err, "profile read should populate the cache")

	resp := postForm(t, client, ts.URL+"/profile", url.Values{
		"_csrf": {csrfFrom(page)},
		"name":  {"Ada Lovelace"},
		"email": {"ada@example.com"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/profile?status=updated", resp.Header.Get("Location"))

	_, err = store.Get(context.Background(), users.CacheKey("ada@example.com"))
	require.ErrorIs(t, err, cache.ErrMiss, "update should invalidate the cached entry")

	updated := parse(t, get(t, client, ts.URL+"/profile?status=updated"))
	require.Equal(t, "Ada Lovelace", updated.Find(`input[name="name"]`).AttrOr("value", ""))
	require.Contains(t, updated.Find(`[data-alert="success"]`).Text(), "Profile updated.")
	require.Equal(t, "Ada Lovelace", strings.TrimSpace(updated.Find("[data-user-menu] .truncate").Text()))
}

func TestProfileUpdateValidationError(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewClient(t)
	login(t, client, ts.URL, "", url.Values{"email": {"ada@example.com"}})

	page := parse(t, get(t, client, ts.URL+"/profile"))
	resp := postForm(t, client, ts.URL+"/profile", url.Values{
		"_csrf": {csrfFrom(page)},
		"name":  {"Ada"},
		"email": {"not-an-email"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	doc := parse(t, resp)
	require.Equal(t, 1, doc.Find(`[data-field-error="email"]`).Length())
	require.Equal(t, "not-an-email", doc.Find(`input[name="email"]`).AttrOr("value", ""))
}

func TestAPIRequiresAuthentication(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp := get(t, testutil.NewClient(t), ts.URL+"/api/users/ada@example.com")

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	payload := decodeJSON(t, resp)
	require.Equal(t, middleware.ReasonMissingToken, payload["error"])
}

func TestAPIBearerGetAndUpdate(t *testing.T) {
	t.Parallel()

	tokens, err := middleware.NewJWTAuthenticator(jwtSecret, "portal-test")
	require.NoError(t, err)

	repo := users.NewMemoryRepository(users.User{ID: "user-1", Name: "Ada", Email: "ada@example.com"})
	service := users.NewCachedService(users.NewLocalService(repo), cache.NewMemoryStore(), time.Minute, zap.NewNop())
	ts := testutil.NewServer(t, testutil.WithUsers(service), testutil.WithTokenAuthenticator(tokens))
	client := testutil.NewClient(t)

	self, err := tokens.Sign(middleware.User{UID: "user-1", Roles: []string{"member"}}, time.Hour)
	require.NoError(t, err)
	viewer, err := tokens.Sign(middleware.User{UID: "user-2", Roles: []string{"viewer"}}, time.Hour)
	require.NoError(t, err)

	resp := apiRequest(t, client, http.MethodGet, ts.URL+"/api/users/user-1", self, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user users.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	require.Equal(t, "Ada", user.Name)

	resp = apiRequest(t, client, http.MethodPut, ts.URL+"/api/users/user-1", self, `{"name":"Ada Lovelace"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = apiRequest(t, client, http.MethodGet, ts.URL+"/api/users/user-1", self, "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	require.Equal(t, "Ada Lovelace", user.Name, "read after update must not serve the stale cache entry")

	resp = apiRequest(t, client, http.MethodPut, ts.URL+"/api/users/user-1", viewer, `{"name":"Mallory"}`)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = apiRequest(t, client, http.MethodPut, ts.URL+"/api/users/user-1", self, `{"email":"broken"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "email", decodeJSON(t, resp)["field"])

	resp = apiRequest(t, client, http.MethodPut, ts.URL+"/api/users/user-1", self, `{"id":"user-9","name":"x"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = apiRequest(t, client, http.MethodGet, ts.URL+"/api/users/missing", self, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBearerTokenWithoutRolesRendersHome(t *testing.T) {
	t.Parallel()

	tokens, err := middleware.NewJWTAuthenticator(jwtSecret, "portal-test")
	require.NoError(t, err)
	ts := testutil.NewServer(t, testutil.WithTokenAuthenticator(tokens))

	token, err := tokens.Sign(middleware.User{UID: "user-1"}, time.Hour)
	require.NoError(t, err)

	resp := apiRequest(t, testutil.NewClient(t), http.MethodGet, ts.URL+"/", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, parse(t, resp).Find("[data-home]").Length())

	resp = apiRequest(t, testutil.NewClient(t), http.MethodPut, ts.URL+"/api/users/user-1", token, `{"name":"Ada"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "default role may edit itself, the record just does not exist")
}

func TestAPIExpiredTokenReason(t *testing.T) {
	t.Parallel()

	tokens, err := middleware.NewJWTAuthenticator(jwtSecret, "portal-test")
	require.NoError(t, err)
	ts := testutil.NewServer(t, testutil.WithTokenAuthenticator(tokens))

	expired, err := tokens.Sign(middleware.User{UID: "user-1"}, -time.Minute)
	require.NoError(t, err)

	resp := apiRequest(t, testutil.NewClient(t), http.MethodGet, ts.URL+"/api/users/user-1", expired, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, middleware.ReasonTokenExpired, decodeJSON(t, resp)["error"])
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp := get(t, testutil.NewClient(t), ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
}

func TestStaticStylesheetServed(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp := get(t, testutil.NewClient(t), ts.URL+"/public/static/app.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	require.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
}

func get(t *testing.T, client *http.Client, target string) *http.Response {
	t.Helper()

	resp, err := client.Get(target)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func postForm(t *testing.T, client *http.Client, target string, values url.Values) *http.Response {
	t.Helper()

	resp, err := client.PostForm(target, values)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func apiRequest(t *testing.T, client *http.Client, method, target, token, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func parse(t *testing.T, resp *http.Response) *goquery.Document {
	t.Helper()
	return testutil.ReadHTML(t, resp)
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func csrfFrom(doc *goquery.Document) string {
	return doc.Find(`meta[name="csrf-token"]`).AttrOr("content", "")
}

// login fetches the login page for its CSRF token and submits values.
func login(t *testing.T, client *http.Client, base, next string, values url.Values) *http.Response {
	t.Helper()

	target := base + "/login"
	if next != "" {
		target += "?next=" + url.QueryEscape(next)
	}
	page := get(t, client, target)
	require.Equal(t, http.StatusOK, page.StatusCode)
	return submitLogin(t, client, base, parse(t, page), values)
}

func submitLogin(t *testing.T, client *http.Client, base string, doc *goquery.Document, values url.Values) *http.Response {
	t.Helper()

	form := url.Values{}
	for key, vals := range values {
		form[key] = vals
	}
	form.Set("_csrf", doc.Find(`form[data-login-form] input[name="_csrf"]`).AttrOr("value", ""))
	if _, ok := values["next"]; !ok {
		if next, exists := doc.Find(`form[data-login-form] input[name="next"]`).Attr("value"); exists {
			form.Set("next", next)
		}
	}
	return postForm(t, client, base+"/login", form)
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
