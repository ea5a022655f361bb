package middleware

import (
	"context"
	"net/http"
	"strings"
)

type requestInfoKey struct{}

const defaultEnvironment = "Development"

// RequestInfo is the per-request metadata read by the auth guard, handlers and templates.
type RequestInfo struct {
	Path        string
	Method      string
	Environment string
	// HTMX is set for requests issued by htmx (HX-Request: true).
	HTMX    bool
	Boosted bool
	// CurrentURL is the browser location htmx reports in HX-Current-URL.
	CurrentURL string
}

// RequestContext records RequestInfo on the context. An empty environment
// label becomes "Development".
func RequestContext(environment string) func(http.Handler) http.Handler {
	label := strings.TrimSpace(environment)
	if label == "" {
		label = defaultEnvironment
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := RequestInfo{
				Path:        r.URL.Path,
				Method:      r.Method,
				Environment: label,
				HTMX:        strings.EqualFold(r.Header.Get("HX-Request"), "true"),
				Boosted:     strings.EqualFold(r.Header.Get("HX-Boosted"), "true"),
				CurrentURL:  r.Header.Get("HX-Current-URL"),
			}
			// Guarded routes answer htmx and full-page requests differently.
			w.Header().Add("Vary", "HX-Request")
			ctx := context.WithValue(r.Context(), requestInfoKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestInfoFromContext returns the stored metadata, or the zero value.
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// RequestPathFromContext returns the request path or "" when unavailable.
func RequestPathFromContext(ctx context.Context) string {
	return RequestInfoFromContext(ctx).Path
}

// IsHTMXRequest reports whether htmx initiated the current request.
func IsHTMXRequest(ctx context.Context) bool {
	return RequestInfoFromContext(ctx).HTMX
}

// EnvironmentFromContext returns the deployment label, defaulting to "Development".
func EnvironmentFromContext(ctx context.Context) string {
	if env := RequestInfoFromContext(ctx).Environment; env != "" {
		return env
	}
	return defaultEnvironment
}
