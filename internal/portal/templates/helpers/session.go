package helpers

import (
	"context"

	"finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/session"
)

// Theme returns the session theme, defaulting to light.
func Theme(ctx context.Context) string {
	if sess, ok := middleware.SessionFromContext(ctx); ok {
		return sess.Theme()
	}
	return session.ThemeLight
}

// CSRFToken returns the token issued for the current request.
func CSRFToken(ctx context.Context) string {
	return middleware.CSRFTokenFromContext(ctx)
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(ctx context.Context) (*middleware.User, bool) {
	return middleware.UserFromContext(ctx)
}

// Environment returns the deployment label.
func Environment(ctx context.Context) string {
	return middleware.EnvironmentFromContext(ctx)
}
