package components

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"finitefield.org/portal/internal/portal/templates/helpers"
)

// CardProps configures Card.
type CardProps struct {
	Title   string
	Content string
	Class   string
	// Body renders after Content when set.
	Body templ.Component
	// Action renders in the card footer, typically a Button, LinkButton or PostButton.
	Action templ.Component
}

// Card renders a bordered panel with a title, text and an optional action.
func Card(props CardProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := helpers.WriteAll(w,
			`<section data-card`,
			helpers.Attr("class", helpers.Classes("border p-4 rounded", props.Class)),
			`>`,
		); err != nil {
			return err
		}
		if props.Title != "" {
			if err := helpers.WriteAll(w, `<h2 class="text-xl font-bold">`, templ.EscapeString(props.Title), `</h2>`); err != nil {
				return err
			}
		}
		if props.Content != "" {
			if err := helpers.WriteAll(w, `<p class="mt-2">`, templ.EscapeString(props.Content), `</p>`); err != nil {
				return err
			}
		}
		if props.Body != nil {
			if err := helpers.WriteAll(w, `<div class="mt-3">`); err != nil {
				return err
			}
			if err := props.Body.Render(ctx, w); err != nil {
				return err
			}
			if err := helpers.WriteAll(w, `</div>`); err != nil {
				return err
			}
		}
		if props.Action != nil {
			if err := helpers.WriteAll(w, `<div class="mt-4" data-card-action>`); err != nil {
				return err
			}
			if err := props.Action.Render(ctx, w); err != nil {
				return err
			}
			if err := helpers.WriteAll(w, `</div>`); err != nil {
				return err
			}
		}
		return helpers.WriteAll(w, `</section>`)
	})
}
