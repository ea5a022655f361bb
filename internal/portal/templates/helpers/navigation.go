package helpers

import (
	"context"
	"path"
	"strings"

	"finitefield.org/portal/internal/portal/httpserver/middleware"
)

// RequestPath returns the cleaned request path, "/" when unknown.
func RequestPath(ctx context.Context) string {
	return cleanRoute(middleware.RequestPathFromContext(ctx))
}

// NavActive reports whether the header link for route should be highlighted.
// With prefix set, nested paths below route also match; "/" never matches by prefix.
func NavActive(ctx context.Context, route string, prefix bool) bool {
	current := RequestPath(ctx)
	target := cleanRoute(route)
	if current == target {
		return true
	}
	return prefix && target != "/" && strings.HasPrefix(current, target+"/")
}

func cleanRoute(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}
