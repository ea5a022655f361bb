// Package layouts wraps page bodies in the portal document shell.
package layouts

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"finitefield.org/portal/internal/portal/session"
	"finitefield.org/portal/internal/portal/templates/helpers"
	"finitefield.org/portal/internal/portal/templates/partials"
)

const siteName = "Portal"

// StylesheetPath is where the bundled stylesheet is served from.
const StylesheetPath = "/public/static/app.css"

// Main renders the standard page layout: header, main content and footer.
func Main(title string, body templ.Component) templ.Component {
	return document(title, helpers.Group(
		partials.Header(partials.DefaultNav()),
		mainContent(body),
		partials.Footer(),
	))
}

// Bare renders the document shell without navigation chrome.
func Bare(title string, body templ.Component) templ.Component {
	return document(title, mainContent(body))
}

// PageTitle joins the page title with the site name.
func PageTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return siteName
	}
	return title + " | " + siteName
}

func document(title string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		theme := helpers.Theme(ctx)
		bodyClass := "min-h-screen bg-white text-slate-900"
		if theme == session.ThemeDark {
			bodyClass = "min-h-screen bg-slate-900 text-slate-100"
		}
		if err := helpers.WriteAll(w,
			`<!doctype html><html lang="en"`,
			helpers.Attr("data-theme", theme),
			helpers.Attr("class", "theme-"+theme),
			`><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<meta name="csrf-token"`, helpers.Attr("content", helpers.CSRFToken(ctx)), `>`,
			`<title>`, templ.EscapeString(PageTitle(title)), `</title>`,
			`<link rel="stylesheet"`, helpers.Attr("href", StylesheetPath), `>`,
			`</head><body`, helpers.Attr("class", bodyClass), `>`,
			`<div class="container mx-auto p-4">`,
		); err != nil {
			return err
		}
		if err := content.Render(ctx, w); err != nil {
			return err
		}
		return helpers.WriteAll(w, `</div></body></html>`)
	})
}

func mainContent(body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := helpers.WriteAll(w, `<main id="main" class="py-6">`); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		return helpers.WriteAll(w, `</main>`)
	})
}
