// Package profile renders the self-service profile editor.
package profile

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"finitefield.org/portal/internal/portal/templates/components"
	"finitefield.org/portal/internal/portal/templates/helpers"
	"finitefield.org/portal/internal/portal/templates/layouts"
)

// Index renders the profile page within the main layout.
func Index(data PageData) templ.Component {
	return layouts.Main("Profile", Content(data))
}

// Content renders the profile body: summary card and edit form.
func Content(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := helpers.WriteAll(w, `<div class="space-y-4" data-profile>`); err != nil {
			return err
		}
		if err := helpers.Render(ctx, w,
			components.Alert(data.Flash, "success"),
			components.Alert(data.Error, "danger"),
		); err != nil {
			return err
		}

		uid := ""
		if data.User != nil {
			uid = data.User.ID
		}
		if err := helpers.WriteAll(w,
			`<div class="flex items-center gap-3">`,
			`<span class="flex h-10 w-10 items-center justify-center rounded-full bg-slate-200 font-bold" data-avatar>`,
			templ.EscapeString(AvatarInitial(data.Name, data.Email, uid)),
			`</span><div><h1 class="text-2xl font-bold">Profile</h1>`,
		); err != nil {
			return err
		}
		for _, role := range data.Roles {
			if err := components.Badge(role, "neutral").Render(ctx, w); err != nil {
				return err
			}
		}
		if err := helpers.WriteAll(w, `</div></div>`); err != nil {
			return err
		}

		return components.Card(components.CardProps{
			Title: "Account details",
			Body:  editForm(data),
		}).Render(ctx, w)
	})
}

func editForm(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := helpers.WriteAll(w,
			`<form method="post" action="/profile" class="space-y-3" data-profile-form>`,
			helpers.CSRFField(helpers.CSRFToken(ctx)),
		); err != nil {
			return err
		}
		if err := field(w, "name", "Name", "text", data.Name, data.FieldErrors["name"]); err != nil {
			return err
		}
		if err := field(w, "email", "Email", "email", data.Email, data.FieldErrors["email"]); err != nil {
			return err
		}
		if err := components.Button(components.ButtonProps{Label: "Save", Type: "submit"}).Render(ctx, w); err != nil {
			return err
		}
		return helpers.WriteAll(w, `</form>`)
	})
}

func field(w io.Writer, name, label, kind, value, problem string) error {
	class := "mt-1 w-full rounded border px-3 py-2"
	if problem != "" {
		class += " border-rose-500"
	}
	if err := helpers.WriteAll(w,
		`<label class="block"><span class="text-sm">`, templ.EscapeString(label), `</span>`,
		`<input`,
		helpers.Attr("type", kind),
		helpers.Attr("name", name),
		helpers.Attr("value", value),
		helpers.Attr("class", class),
		helpers.BoolAttr("aria-invalid", problem != ""),
		`></label>`,
	); err != nil {
		return err
	}
	if strings.TrimSpace(problem) == "" {
		return nil
	}
	return helpers.WriteAll(w,
		`<p class="text-sm text-rose-700"`, helpers.Attr("data-field-error", name), `>`,
		templ.EscapeString(problem),
		`</p>`,
	)
}
