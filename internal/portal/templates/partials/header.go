// Package partials renders the page chrome shared by every layout.
package partials

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"finitefield.org/portal/internal/portal/rbac"
	"finitefield.org/portal/internal/portal/session"
	"finitefield.org/portal/internal/portal/templates/components"
	"finitefield.org/portal/internal/portal/templates/helpers"
)

// NavItem is a header navigation entry gated by a capability.
type NavItem struct {
	Label      string
	Href       string
	Capability rbac.Capability
	Prefix     bool
}

// DefaultNav lists the header links.
func DefaultNav() []NavItem {
	return []NavItem{
		{Label: "Home", Href: "/", Capability: rbac.CapHomeView},
		{Label: "Profile", Href: "/profile", Capability: rbac.CapProfileSelf, Prefix: true},
	}
}

// Header renders the top bar: brand, navigation, environment badge, theme toggle and user menu.
func Header(nav []NavItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := helpers.WriteAll(w,
			`<header class="bg-gray-800 text-white p-4 flex items-center gap-4" data-header>`,
			`<a href="/" class="text-lg font-bold">Portal</a>`,
		); err != nil {
			return err
		}

		user, signedIn := helpers.CurrentUser(ctx)
		if signedIn {
			if err := navLinks(ctx, w, nav); err != nil {
				return err
			}
		}
		if err := environmentBadge(ctx, w); err != nil {
			return err
		}
		if err := helpers.WriteAll(w, `<div class="ml-auto flex items-center gap-3">`); err != nil {
			return err
		}
		if signedIn && helpers.HasCapability(ctx, rbac.CapThemeToggle) {
			if err := themeToggle(ctx, w); err != nil {
				return err
			}
		}
		if signedIn {
			if err := userMenu(ctx, w, user.Name, user.Email, user.UID); err != nil {
				return err
			}
		} else if err := components.LinkButton("/login", components.ButtonProps{
			Label:   "Sign in",
			Variant: components.VariantOutline,
			Size:    components.SizeSmall,
		}).Render(ctx, w); err != nil {
			return err
		}
		return helpers.WriteAll(w, `</div></header>`)
	})
}

func navLinks(ctx context.Context, w io.Writer, nav []NavItem) error {
	if err := helpers.WriteAll(w, `<nav class="flex gap-1" aria-label="Main" data-nav>`); err != nil {
		return err
	}
	for _, item := range nav {
		if !helpers.HasCapability(ctx, item.Capability) {
			continue
		}
		active := helpers.NavActive(ctx, item.Href, item.Prefix)
		current := ""
		if active {
			current = "page"
		}
		if err := helpers.WriteAll(w,
			`<a`,
			helpers.Attr("href", item.Href),
			helpers.Attr("class", helpers.NavClass(active)),
			helpers.Attr("aria-current", current),
			`>`,
			templ.EscapeString(item.Label),
			`</a>`,
		); err != nil {
			return err
		}
	}
	return helpers.WriteAll(w, `</nav>`)
}

func environmentBadge(ctx context.Context, w io.Writer) error {
	env := helpers.Environment(ctx)
	tone := "neutral"
	switch strings.ToLower(env) {
	case "production":
		tone = "danger"
	case "staging":
		tone = "warning"
	}
	return helpers.WriteAll(w,
		`<span data-environment-badge`,
		helpers.Attr("title", env),
		helpers.Attr("class", helpers.BadgeClass(tone)),
		`><span aria-hidden="true">`,
		templ.EscapeString(EnvironmentShort(env)),
		`</span><span class="sr-only">`,
		templ.EscapeString(env),
		`</span></span>`,
	)
}

// EnvironmentShort abbreviates an environment label for the header badge.
func EnvironmentShort(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return "PRD"
	case "staging", "stg":
		return "STG"
	case "development", "dev", "":
		return "DEV"
	}
	upper := strings.ToUpper(strings.TrimSpace(env))
	if len(upper) > 3 {
		upper = upper[:3]
	}
	return upper
}

func themeToggle(ctx context.Context, w io.Writer) error {
	label := "Dark mode"
	if helpers.Theme(ctx) == session.ThemeDark {
		label = "Light mode"
	}
	return components.PostButton("/theme", components.ButtonProps{
		Label:   label,
		Variant: components.VariantSecondary,
		Size:    components.SizeSmall,
		Attrs:   map[string]string{"data-theme-toggle": helpers.Theme(ctx)},
	}).Render(ctx, w)
}

func userMenu(ctx context.Context, w io.Writer, name, email, uid string) error {
	display := name
	if display == "" {
		display = email
	}
	if display == "" {
		display = uid
	}
	if err := helpers.WriteAll(w,
		`<div class="flex items-center gap-2" data-user-menu>`,
		`<span class="truncate text-sm">`, templ.EscapeString(display), `</span>`,
		`<form method="post" action="/logout" data-user-menu-logout>`,
		helpers.CSRFField(helpers.CSRFToken(ctx)),
	); err != nil {
		return err
	}
	if err := components.Button(components.ButtonProps{
		Label:   "Log out",
		Type:    "submit",
		Variant: components.VariantOutline,
		Size:    components.SizeSmall,
	}).Render(ctx, w); err != nil {
		return err
	}
	return helpers.WriteAll(w, `</form></div>`)
}

// Footer renders the page footer.
func Footer() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return helpers.WriteAll(w,
			`<footer class="bg-gray-800 text-white p-4 text-sm" data-footer>`,
			`Portal &middot; `, templ.EscapeString(helpers.Environment(ctx)),
			`</footer>`,
		)
	})
}
