package components

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"finitefield.org/portal/internal/portal/templates/helpers"
)

// Badge renders a pill with a semantic tone: success, warning, danger or neutral.
func Badge(label, tone string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return helpers.WriteAll(w,
			`<span`,
			helpers.Attr("class", helpers.BadgeClass(tone)),
			helpers.Attr("data-tone", tone),
			`>`,
			templ.EscapeString(label),
			`</span>`,
		)
	})
}

// Alert renders a flash message box. Empty messages render nothing.
func Alert(message, tone string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if message == "" {
			return nil
		}
		class := "rounded border border-slate-200 bg-slate-50 p-3 text-sm text-slate-700"
		role := "status"
		switch tone {
		case "danger":
			class = "rounded border border-rose-200 bg-rose-50 p-3 text-sm text-rose-700"
			role = "alert"
		case "success":
			class = "rounded border border-emerald-200 bg-emerald-50 p-3 text-sm text-emerald-700"
		}
		return helpers.WriteAll(w,
			`<div`,
			helpers.Attr("class", class),
			helpers.Attr("role", role),
			helpers.Attr("data-alert", tone),
			`>`,
			templ.EscapeString(message),
			`</div>`,
		)
	})
}
