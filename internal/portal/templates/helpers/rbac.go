package helpers

import (
	"context"

	"finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/rbac"
)

// HasCapability reports whether the signed-in user holds capability. An empty
// capability is always granted; anonymous visitors hold none.
func HasCapability(ctx context.Context, capability rbac.Capability) bool {
	if capability == "" {
		return true
	}
	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		return false
	}
	return rbac.HasCapability(user.Roles, capability)
}
