package ui

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	custommw "finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/observability"
)

// ToggleTheme flips the session theme, or applies an explicit theme form value,
// then sends the browser back to the page it came from.
func (h *Handlers) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	sess, ok := custommw.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requested := strings.TrimSpace(r.PostFormValue("theme"))
	if requested == "" || !sess.SetTheme(requested) {
		requested = sess.ToggleTheme()
	}
	observability.FromContext(r.Context()).Debug("theme changed", zap.String("theme", requested))

	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, backTarget(r), http.StatusSeeOther)
}

// backTarget returns the same-host Referer path, or the home page.
func backTarget(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return "/"
	}
	if ref.Host != "" && ref.Host != r.Host {
		return "/"
	}
	target := ref.EscapedPath()
	if ref.RawQuery != "" {
		target += "?" + ref.RawQuery
	}
	return target
}
