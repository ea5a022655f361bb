package helpers

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"
)

// Attr renders ` name="value"` with the value escaped. Empty values render nothing.
func Attr(name, value string) string {
	if value == "" {
		return ""
	}
	return " " + name + `="` + templ.EscapeString(value) + `"`
}

// BoolAttr renders a bare boolean attribute when set.
func BoolAttr(name string, set bool) string {
	if !set {
		return ""
	}
	return " " + name
}

// Attrs renders a map of attributes in stable order.
func Attrs(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(templ.EscapeString(k))
		b.WriteString(`="`)
		b.WriteString(templ.EscapeString(values[k]))
		b.WriteString(`"`)
	}
	return b.String()
}

// Classes joins non-empty class fragments with single spaces.
func Classes(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// WriteAll writes each fragment in order, stopping at the first error.
func WriteAll(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

// Render renders each non-nil component in order.
func Render(ctx context.Context, w io.Writer, children ...templ.Component) error {
	for _, child := range children {
		if child == nil {
			continue
		}
		if err := child.Render(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// Group combines children into a single component.
func Group(children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Render(ctx, w, children...)
	})
}

// CSRFField renders the hidden input carrying the CSRF token.
func CSRFField(token string) string {
	return `<input type="hidden" name="_csrf"` + Attr("value", token) + `>`
}
