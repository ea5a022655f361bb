package helpers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finitefield.org/portal/internal/portal/httpserver/middleware"
)

func TestAttrEscapes(t *testing.T) {
	t.Parallel()

	require.Equal(t, ` title="a &lt;b&gt; &#34;c&#34;"`, Attr("title", `a <b> "c"`))
	require.Equal(t, "", Attr("title", ""))
	require.Equal(t, " disabled", BoolAttr("disabled", true))
	require.Equal(t, ` a="1" b="2"`, Attrs(map[string]string{"b": "2", "a": "1"}))
}

func TestClasses(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b c", Classes(" a ", "", "b", "  ", "c"))
}

func TestTextComponentEscapes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, TextComponent("<script>").Render(context.Background(), &buf))
	require.Equal(t, "&lt;script&gt;", buf.String())
}

func TestRelative(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "just now", Relative(now.Add(-10*time.Second), now))
	require.Equal(t, "5m ago", Relative(now.Add(-5*time.Minute), now))
	require.Equal(t, "3h ago", Relative(now.Add(-3*time.Hour), now))
	require.Equal(t, "2024-12-30", Relative(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), now))
	require.Equal(t, "never", Relative(time.Time{}, now))
}

func TestNavActive(t *testing.T) {
	t.Parallel()

	var ctx context.Context
	handler := middleware.RequestContext("")(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/profile/", nil))

	require.True(t, NavActive(ctx, "/profile", false))
	require.True(t, NavActive(ctx, "/profile", true))
	require.False(t, NavActive(ctx, "/", true), "root prefix only matches root")
}

func TestThemeDefaultsToLight(t *testing.T) {
	t.Parallel()

	require.Equal(t, "light", Theme(context.Background()))
}
