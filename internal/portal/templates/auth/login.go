// Package auth renders the sign-in page.
package auth

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"finitefield.org/portal/internal/portal/templates/components"
	"finitefield.org/portal/internal/portal/templates/helpers"
	"finitefield.org/portal/internal/portal/templates/layouts"
)

// LoginPage renders the full login document.
func LoginPage(data LoginPageData) templ.Component {
	return layouts.Bare("Login", LoginForm(data))
}

// LoginForm renders the heading, status messages and the login form.
func LoginForm(data LoginPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := helpers.WriteAll(w,
			`<div class="mx-auto max-w-sm" data-login>`,
			`<h1 class="text-2xl font-bold mb-4">Login Page</h1>`,
		); err != nil {
			return err
		}

		var notices []templ.Component
		if data.SignedInAs != "" {
			notices = append(notices, components.Alert("Signed in as "+data.SignedInAs+". Logging in again switches account.", "neutral"))
		}
		if data.Message != "" {
			notices = append(notices, components.Alert(data.Message, "success"))
		}
		if data.Error != "" {
			notices = append(notices, components.Alert(data.Error, "danger"))
		}
		if err := helpers.Render(ctx, w, notices...); err != nil {
			return err
		}

		if err := helpers.WriteAll(w,
			`<form method="post" class="mt-4 space-y-3" data-login-form`,
			helpers.Attr("action", data.Action()),
			`>`,
			helpers.CSRFField(data.CSRFToken),
		); err != nil {
			return err
		}
		if data.Next != "" {
			if err := helpers.WriteAll(w, `<input type="hidden" name="next"`, helpers.Attr("value", data.Next), `>`); err != nil {
				return err
			}
		}
		if err := helpers.WriteAll(w,
			`<label class="block"><span class="text-sm">Email</span>`,
			`<input type="email" name="email" autocomplete="username" class="mt-1 w-full rounded border px-3 py-2"`,
			helpers.Attr("value", data.Email),
			`></label>`,
		); err != nil {
			return err
		}
		if data.PasswordField {
			if err := helpers.WriteAll(w,
				`<label class="block"><span class="text-sm">Password</span>`,
				`<input type="password" name="password" autocomplete="current-password" class="mt-1 w-full rounded border px-3 py-2">`,
				`</label>`,
			); err != nil {
				return err
			}
		}
		if data.TokenField {
			if err := helpers.WriteAll(w, `<input type="hidden" name="id_token" data-id-token>`); err != nil {
				return err
			}
		}
		if err := helpers.WriteAll(w,
			`<label class="flex items-center gap-2 text-sm"><input type="checkbox" name="remember" value="1"`,
			helpers.BoolAttr("checked", data.Remember),
			`> Keep me signed in</label>`,
		); err != nil {
			return err
		}
		if err := components.Button(components.ButtonProps{
			Label: "Log In",
			Type:  "submit",
			Class: "w-full",
		}).Render(ctx, w); err != nil {
			return err
		}
		return helpers.WriteAll(w, `</form></div>`)
	})
}
