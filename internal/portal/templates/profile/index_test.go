package profile

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"finitefield.org/portal/internal/portal/users"
)

func TestContentRendersEditForm(t *testing.T) {
	t.Parallel()

	data := NewPageData(&users.User{ID: "user-1", Name: "ada", Email: "ada@example.com"}, []string{"member"})
	data.Flash = "Profile updated."

	doc := render(t, data)

	form := doc.Find("form[data-profile-form]")
	require.Equal(t, "/profile", form.AttrOr("action", ""))
	require.Equal(t, 1, form.Find(`input[name="_csrf"]`).Length())
	require.Equal(t, "ada", form.Find(`input[name="name"]`).AttrOr("value", ""))
	require.Equal(t, "ada@example.com", form.Find(`input[name="email"]`).AttrOr("value", ""))
	require.Equal(t, "A", strings.TrimSpace(doc.Find("[data-avatar]").Text()))
	require.Equal(t, "member", doc.Find("[data-tone]").Text())
	require.Contains(t, doc.Find(`[data-alert="success"]`).Text(), "Profile updated.")
}

func TestContentShowsFieldErrors(t *testing.T) {
	t.Parallel()

	data := NewPageData(&users.User{ID: "user-1"}, nil)
	data.Email = "not-an-email"
	data.FieldErrors = map[string]string{"email": "must be a valid email address"}

	doc := render(t, data)

	input := doc.Find(`input[name="email"]`)
	require.Equal(t, "not-an-email", input.AttrOr("value", ""))
	_, invalid := input.Attr("aria-invalid")
	require.True(t, invalid)
	require.Equal(t, "must be a valid email address", doc.Find(`[data-field-error="email"]`).Text())
	require.Equal(t, 0, doc.Find(`[data-field-error="name"]`).Length())
}

func TestAvatarInitialFallbacks(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Z", AvatarInitial("", "zoe@example.com", ""))
	require.Equal(t, "U", AvatarInitial(" ", "", "uid"))
	require.Equal(t, "?", AvatarInitial("", "", ""))
}

func render(t *testing.T, data PageData) *goquery.Document {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Content(data).Render(context.Background(), &buf))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}
