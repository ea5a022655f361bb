// Package ui serves the HTML pages behind the auth guard.
package ui

import (
	"errors"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	custommw "finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/observability"
	"finitefield.org/portal/internal/portal/rbac"
	"finitefield.org/portal/internal/portal/templates/home"
	"finitefield.org/portal/internal/portal/users"
)

// Dependencies collects external services required by the UI handlers.
type Dependencies struct {
	Users users.Service
	Now   func() time.Time
}

// Handlers exposes HTTP handlers for portal pages.
type Handlers struct {
	users users.Service
	now   func() time.Time
}

// NewHandlers wires the UI handler set.
func NewHandlers(deps Dependencies) *Handlers {
	service := deps.Users
	if service == nil {
		service = users.NewLocalService(users.NewMemoryRepository())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{users: service, now: now}
}

// Home renders the landing page with the signed-in user's record.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	user, ok := custommw.UserFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	data := home.PageData{
		CanEditProfile: rbac.HasCapability(user.Roles, rbac.CapProfileSelf),
		Now:            h.now(),
	}
	record, err := h.lookupUser(r, user)
	if err != nil {
		observability.FromContext(r.Context()).Error("home: fetch user failed", zap.String("uid", user.UID), zap.Error(err))
		data.LoadError = "Your profile could not be loaded. Please try again later."
	}
	data.User = record

	templ.Handler(home.Index(data)).ServeHTTP(w, r)
}

// lookupUser fetches the stored record, falling back to the identity itself
// for accounts that were never provisioned (bearer-only callers).
func (h *Handlers) lookupUser(r *http.Request, user *custommw.User) (*users.User, error) {
	record, err := h.users.GetUser(r.Context(), user.UID)
	if errors.Is(err, users.ErrNotFound) {
		return &users.User{ID: user.UID, Name: user.Name, Email: user.Email}, nil
	}
	return record, err
}
