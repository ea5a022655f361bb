package profile

import (
	"strings"

	"finitefield.org/portal/internal/portal/users"
)

// PageData drives the profile page.
type PageData struct {
	User *users.User
	// Name and Email hold the submitted form values when re-rendering after a failed update.
	Name        string
	Email       string
	Roles       []string
	FieldErrors map[string]string
	Flash       string
	Error       string
}

// NewPageData seeds the form with the stored user values.
func NewPageData(user *users.User, roles []string) PageData {
	data := PageData{User: user, Roles: roles}
	if user != nil {
		data.Name = user.Name
		data.Email = user.Email
	}
	return data
}

// AvatarInitial derives the initial used for avatar placeholders.
func AvatarInitial(name, email, fallback string) string {
	candidate := strings.TrimSpace(name)
	if candidate == "" {
		candidate = strings.TrimSpace(email)
	}
	if candidate == "" {
		candidate = strings.TrimSpace(fallback)
	}
	if candidate == "" {
		return "?"
	}
	runes := []rune(strings.ToUpper(candidate))
	return string(runes[0])
}
