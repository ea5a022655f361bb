package ui

import (
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	custommw "finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/observability"
	profiletpl "finitefield.org/portal/internal/portal/templates/profile"
	"finitefield.org/portal/internal/portal/users"
)

// ProfilePage renders the profile editor.
func (h *Handlers) ProfilePage(w http.ResponseWriter, r *http.Request) {
	user, ok := custommw.UserFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	record, err := h.lookupUser(r, user)
	if err != nil {
		observability.FromContext(r.Context()).Error("profile: fetch user failed", zap.String("uid", user.UID), zap.Error(err))
		http.Error(w, "Your profile could not be loaded. Please try again later.", http.StatusBadGateway)
		return
	}

	data := profiletpl.NewPageData(record, user.Roles)
	if r.URL.Query().Get("status") == "updated" {
		data.Flash = "Profile updated."
	}
	templ.Handler(profiletpl.Index(data)).ServeHTTP(w, r)
}

// ProfileSubmit applies the edit form through the user service.
func (h *Handlers) ProfileSubmit(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())
	user, ok := custommw.UserFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "The form could not be read.", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.PostFormValue("name"))
	email := strings.TrimSpace(r.PostFormValue("email"))

	updated, err := h.users.UpdateUser(r.Context(), users.UpdateRequest{
		ID:    user.UID,
		Name:  users.StringPtr(name),
		Email: users.StringPtr(email),
	})
	if err != nil {
		data := profiletpl.PageData{
			User:  &users.User{ID: user.UID},
			Name:  name,
			Email: email,
			Roles: user.Roles,
		}
		status := http.StatusBadGateway
		var validation *users.ValidationError
		switch {
		case errors.As(err, &validation):
			status = http.StatusUnprocessableEntity
			data.FieldErrors = map[string]string{validation.Field: validation.Message}
		case errors.Is(err, users.ErrInvalid):
			status = http.StatusUnprocessableEntity
			data.Error = "The submitted values were rejected."
		case errors.Is(err, users.ErrNotFound):
			status = http.StatusNotFound
			data.Error = "Your profile record does not exist."
		default:
			logger.Error("profile: update failed", zap.String("uid", user.UID), zap.Error(err))
			data.Error = "Your profile could not be saved. Please try again later."
		}
		templ.Handler(profiletpl.Index(data), templ.WithStatus(status)).ServeHTTP(w, r)
		return
	}

	custommw.RefreshSessionProfile(r.Context(), updated.ID, updated.Name, updated.Email)
	logger.Info("profile updated", zap.String("uid", updated.ID))

	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", "/profile?status=updated")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/profile?status=updated", http.StatusSeeOther)
}
