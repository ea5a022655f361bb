package partials

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/rbac"
)

func TestHeaderRendersForMember(t *testing.T) {
	t.Parallel()

	ctx := buildHeaderContext(t, "/profile", "Staging")
	ctx = middleware.ContextWithUser(ctx, &middleware.User{
		UID:   "user-1",
		Email: "ada@example.com",
		Name:  "Ada",
		Roles: []string{string(rbac.RoleMember)},
	})

	doc := renderHeader(t, ctx)

	badge := doc.Find("[data-environment-badge] span[aria-hidden='true']")
	require.Equal(t, 1, badge.Length(), "environment badge should render")
	require.Equal(t, "STG", strings.TrimSpace(badge.Text()))

	profileLink := doc.Find(`[data-nav] a[href="/profile"]`)
	require.Equal(t, 1, profileLink.Length())
	require.Equal(t, "page", profileLink.AttrOr("aria-current", ""), "active route highlights current page")
	require.Contains(t, profileLink.AttrOr("class", ""), "bg-slate-900")
	require.Equal(t, "", doc.Find(`[data-nav] a[href="/"]`).AttrOr("aria-current", ""))

	require.Equal(t, 1, doc.Find("[data-theme-toggle]").Length(), "theme toggle should render")
	require.Equal(t, "/theme", doc.Find("[data-theme-toggle]").Closest("form").AttrOr("action", ""))

	userMenu := doc.Find("[data-user-menu]")
	require.Equal(t, 1, userMenu.Length())
	require.Equal(t, "Ada", strings.TrimSpace(userMenu.Find(".truncate.text-sm").Text()))
	require.Equal(t, "/logout", doc.Find("[data-user-menu-logout]").AttrOr("action", ""))
	require.Equal(t, 1, doc.Find(`[data-user-menu-logout] input[name="_csrf"]`).Length(), "logout form should include CSRF field")
}

func TestHeaderHidesRestrictedItems(t *testing.T) {
	t.Parallel()

	ctx := buildHeaderContext(t, "/", "Development")
	ctx = middleware.ContextWithUser(ctx, &middleware.User{
		UID:   "viewer-1",
		Email: "viewer@example.com",
		Roles: []string{string(rbac.RoleViewer)},
	})

	doc := renderHeader(t, ctx)

	require.Equal(t, 0, doc.Find(`[data-nav] a[href="/profile"]`).Length(), "viewer lacks profile capability")
	require.Equal(t, "page", doc.Find(`[data-nav] a[href="/"]`).AttrOr("aria-current", ""))
	require.Equal(t, "viewer@example.com", strings.TrimSpace(doc.Find("[data-user-menu] .truncate.text-sm").Text()))
}

func TestHeaderAnonymous(t *testing.T) {
	t.Parallel()

	doc := renderHeader(t, buildHeaderContext(t, "/login", "Production"))

	require.Equal(t, 0, doc.Find("[data-nav]").Length())
	require.Equal(t, 0, doc.Find("[data-user-menu]").Length())
	require.Equal(t, 0, doc.Find("[data-theme-toggle]").Length())
	require.Equal(t, "PRD", strings.TrimSpace(doc.Find("[data-environment-badge] span[aria-hidden='true']").Text()))
	require.Equal(t, 1, doc.Find(`a[href="/login"]`).Length())
}

func TestEnvironmentShort(t *testing.T) {
	t.Parallel()

	require.Equal(t, "DEV", EnvironmentShort(""))
	require.Equal(t, "PRD", EnvironmentShort("Production"))
	require.Equal(t, "QA", EnvironmentShort("qa"))
	require.Equal(t, "SAN", EnvironmentShort("sandbox"))
}

func buildHeaderContext(t *testing.T, requestPath string, environment string) context.Context {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, requestPath, nil)
	rec := httptest.NewRecorder()

	var ctx context.Context
	handler := middleware.RequestContext(environment)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	handler.ServeHTTP(rec, req)

	require.NotNil(t, ctx, "middleware stack must provide context")
	return ctx
}

func renderHeader(t *testing.T, ctx context.Context) *goquery.Document {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Header(DefaultNav()).Render(ctx, &buf), "header must render without error")

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err, "html must parse")
	return doc
}
