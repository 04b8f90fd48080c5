package htmlutil

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const formPage = `
<html><body>
<form action="/submit">
	<input type="hidden" name="service" value="direct/1/Form"/>
	<input type="hidden" name="$Hidden" value="placeholder"/>
	<input type="text" name="copies" value="1"/>
	<input type="text" value="no name, never submitted"/>
	<select name="lang">
		<option value="fr">Français</option>
		<option value="en" selected>English</option>
	</select>
	<select name="fallback">
		<option value="first">First</option>
		<option value="second">Second</option>
	</select>
	<input type="submit" name="$Submit" value="Next"/>
</form>
</body></html>`

func TestFormData(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(formPage))
	require.NoError(t, err)

	data := FormData(doc.Find("form").First())
	require.Equal(t, "direct/1/Form", data.Get("service"))
	require.Equal(t, "placeholder", data.Get("$Hidden"))
	require.Equal(t, "1", data.Get("copies"))
	require.Equal(t, "Next", data.Get("$Submit"))
	// the selected option wins, otherwise the first one does
	require.Equal(t, "en", data.Get("lang"))
	require.Equal(t, "first", data.Get("fallback"))
	require.Len(t, data, 6)
}

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<ul>
			<li><a href="/a?id=1">  First   link  </a></li>
			<li><a href="/b">Second</a></li>
			<li><a>no href</a></li>
		</ul>`))
	require.NoError(t, err)

	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Equal(t, []Anchor{
		{Name: "First link", Href: "/a?id=1"},
		{Name: "Second", Href: "/b"},
		{Name: "no href", Href: ""},
	}, anchors)
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a b c", CleanText("  a \n\t b    c "))
	require.Equal(t, "état: OK", CleanText("\n état: \t OK \n"))
}

func TestResolveHref(t *testing.T) {
	base, err := url.Parse("https://portal.example.com/user")
	require.NoError(t, err)

	require.Equal(t, "https://portal.example.com/app?service=x", ResolveHref(base, "/app?service=x"))
	require.Equal(t, "https://other.example.com/x", ResolveHref(base, "https://other.example.com/x"))
	require.Equal(t, "https://portal.example.com/user", ResolveHref(base, ""))
}
