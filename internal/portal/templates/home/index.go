// Package home renders the landing page behind the auth guard.
package home

import (
	"context"
	"io"
	"time"

	"github.com/a-h/templ"

	"finitefield.org/portal/internal/portal/templates/components"
	"finitefield.org/portal/internal/portal/templates/helpers"
	"finitefield.org/portal/internal/portal/templates/layouts"
	"finitefield.org/portal/internal/portal/users"
)

// PageData drives the home page.
type PageData struct {
	User *users.User
	// LoadError is shown in place of the profile card when the user lookup failed.
	LoadError      string
	CanEditProfile bool
	Now            time.Time
}

// Index renders the home page within the main layout.
func Index(data PageData) templ.Component {
	return layouts.Main("Home", Content(data))
}

// Content renders the home page body.
func Content(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := helpers.WriteAll(w,
			`<div class="space-y-4" data-home>`,
			`<p class="text-lg">This is the homepage</p>`,
		); err != nil {
			return err
		}
		if data.LoadError != "" {
			if err := components.Alert(data.LoadError, "danger").Render(ctx, w); err != nil {
				return err
			}
		}
		if data.User != nil {
			if err := profileCard(data).Render(ctx, w); err != nil {
				return err
			}
		}
		return helpers.WriteAll(w, `</div>`)
	})
}

func profileCard(data PageData) templ.Component {
	user := data.User
	title := "Welcome"
	if user.Name != "" {
		title = "Welcome, " + user.Name
	}

	var action templ.Component
	if data.CanEditProfile {
		action = components.LinkButton("/profile", components.ButtonProps{Label: "Edit profile"})
	}

	return components.Card(components.CardProps{
		Title:   title,
		Content: "Your account details are shown below.",
		Body:    userDetails(user, data.Now),
		Action:  action,
	})
}

func userDetails(user *users.User, now time.Time) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if now.IsZero() {
			now = time.Now()
		}
		updated := "-"
		if !user.UpdatedAt.IsZero() {
			updated = helpers.Relative(user.UpdatedAt, now)
		}
		return helpers.WriteAll(w,
			`<dl class="grid grid-cols-2 gap-2 text-sm" data-user-details>`,
			`<dt>Email</dt><dd data-field="email">`, templ.EscapeString(user.Email), `</dd>`,
			`<dt>User ID</dt><dd data-field="id">`, templ.EscapeString(user.ID), `</dd>`,
			`<dt>Updated</dt><dd data-field="updated">`, templ.EscapeString(updated), `</dd>`,
			`</dl>`,
		)
	})
}
