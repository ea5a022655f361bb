// Package components holds the shared UI kit: buttons, cards and badges.
package components

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"finitefield.org/portal/internal/portal/templates/helpers"
)

// Variant selects the button colour scheme.
type Variant string

const (
	VariantPrimary   Variant = "primary"
	VariantSecondary Variant = "secondary"
	VariantOutline   Variant = "outline"
)

// Size selects the button padding and font size.
type Size string

const (
	SizeSmall  Size = "sm"
	SizeMedium Size = "md"
	SizeLarge  Size = "lg"
)

const buttonBase = "font-semibold rounded transition-all focus:outline-none focus:ring-2 focus:ring-offset-2"

var variantClasses = map[Variant]string{
	VariantPrimary:   "bg-blue-500 text-white hover:bg-blue-600 focus:ring-blue-500",
	VariantSecondary: "bg-gray-500 text-white hover:bg-gray-600 focus:ring-gray-500",
	VariantOutline:   "bg-transparent border border-blue-500 text-blue-500 hover:bg-blue-50 focus:ring-blue-500",
}

var sizeClasses = map[Size]string{
	SizeSmall:  "px-3 py-1.5 text-sm",
	SizeMedium: "px-4 py-2 text-base",
	SizeLarge:  "px-6 py-3 text-lg",
}

// ButtonProps configures Button and LinkButton.
type ButtonProps struct {
	Label    string
	Type     string // button, submit or reset; defaults to button
	Variant  Variant
	Size     Size
	Disabled bool
	Class    string
	Name     string
	Value    string
	Attrs    map[string]string
}

// ButtonClass returns the combined class list for a variant and size. Unknown values fall back to primary/md.
func ButtonClass(variant Variant, size Size, extra string) string {
	v, ok := variantClasses[variant]
	if !ok {
		v = variantClasses[VariantPrimary]
	}
	s, ok := sizeClasses[size]
	if !ok {
		s = sizeClasses[SizeMedium]
	}
	return helpers.Classes(buttonBase, v, s, extra)
}

func buttonType(t string) string {
	switch t {
	case "submit", "reset":
		return t
	default:
		return "button"
	}
}

// Button renders a <button>.
func Button(props ButtonProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		disabled := "false"
		if props.Disabled {
			disabled = "true"
		}
		return helpers.WriteAll(w,
			`<button`,
			helpers.Attr("type", buttonType(props.Type)),
			helpers.Attr("class", ButtonClass(props.Variant, props.Size, props.Class)),
			helpers.Attr("name", props.Name),
			helpers.Attr("value", props.Value),
			helpers.BoolAttr("disabled", props.Disabled),
			helpers.Attr("aria-disabled", disabled),
			helpers.Attrs(props.Attrs),
			`>`,
			templ.EscapeString(props.Label),
			`</button>`,
		)
	})
}

// LinkButton renders an anchor styled as a button.
func LinkButton(href string, props ButtonProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return helpers.WriteAll(w,
			`<a`,
			helpers.Attr("href", href),
			helpers.Attr("class", ButtonClass(props.Variant, props.Size, helpers.Classes("inline-block", props.Class))),
			helpers.Attrs(props.Attrs),
			`>`,
			templ.EscapeString(props.Label),
			`</a>`,
		)
	})
}

// PostButton renders a single-button form posting to action with the CSRF token.
func PostButton(action string, props ButtonProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := helpers.WriteAll(w,
			`<form method="post"`,
			helpers.Attr("action", action),
			` class="inline">`,
			helpers.CSRFField(helpers.CSRFToken(ctx)),
		); err != nil {
			return err
		}
		props.Type = "submit"
		if err := Button(props).Render(ctx, w); err != nil {
			return err
		}
		return helpers.WriteAll(w, `</form>`)
	})
}
