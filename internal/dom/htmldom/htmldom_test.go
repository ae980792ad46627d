package htmldom

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const page = `<html><body>
<nav id="top" class="nav main"><a href="/home" class="link">Home</a><a class="link">About</a></nav>
<div id="card">  Hello <b>bold <i>deep</i></b> world </div>
</body></html>`

func TestDocument_Query(t *testing.T) {
	doc, err := ParseString("index.html", page)
	require.NoError(t, err)

	els, err := doc.Query(context.Background(), "a.link")
	require.NoError(t, err)
	require.Len(t, els, 2)
	assert.Equal(t, "a.link, a.link", els.String())

	none, err := doc.Query(context.Background(), "table")
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())

	_, err = doc.Query(context.Background(), "a[")
	require.Error(t, err)
}

func TestElement_Attribute(t *testing.T) {
	doc, err := ParseString("index.html", page)
	require.NoError(t, err)
	els, err := doc.Query(context.Background(), "a")
	require.NoError(t, err)

	v, ok, err := els[0].Attribute(context.Background(), "HREF")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/home", v)

	_, ok, err = els[1].Attribute(context.Background(), "href")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestElement_TextNodesAndChildren(t *testing.T) {
	doc, err := ParseString("index.html", page)
	require.NoError(t, err)
	els, err := doc.Query(context.Background(), "#card")
	require.NoError(t, err)
	require.Len(t, els, 1)

	text, err := els[0].TextNodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"  Hello ", " world "}, text)

	kids, err := els[0].Children(context.Background())
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "b", kids[0].Describe())
	assert.Equal(t, "div#card", els[0].Describe())
}

func TestElements_MarshalJSON(t *testing.T) {
	doc, err := ParseString("index.html", page)
	require.NoError(t, err)
	els, err := doc.Query(context.Background(), "nav")
	require.NoError(t, err)
	b, err := els.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["nav#top.nav.main"]`, string(b))
}

func TestDocument_MutationsVisibleToExistingHandles(t *testing.T) {
	doc, err := ParseString("index.html", page)
	require.NoError(t, err)
	els, err := doc.Query(context.Background(), "a")
	require.NoError(t, err)

	require.NoError(t, doc.SetAttribute("a", "href", "/x"))
	v, ok, err := els[1].Attribute(context.Background(), "href")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/x", v)

	require.NoError(t, doc.RemoveAttribute("a", "href"))
	_, ok, err = els[0].Attribute(context.Background(), "href")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, doc.SetText("#card", "replaced"))
	cards, err := doc.Query(context.Background(), "#card")
	require.NoError(t, err)
	text, err := cards[0].TextNodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"replaced"}, text)

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	assert.Contains(t, buf.String(), "replaced")
}

func TestSetAttribute_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		val := rapid.StringMatching(`[a-zA-Z0-9 /_.-]{0,20}`).Draw(t, "val")
		doc, err := ParseString("p.html", `<p id="x"></p>`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if err := doc.SetAttribute("#x", "data-v", val); err != nil {
			t.Fatalf("set: %v", err)
		}
		els, err := doc.Query(context.Background(), "#x")
		if err != nil || len(els) != 1 {
			t.Fatalf("query: %v %d", err, len(els))
		}
		got, ok, err := els[0].Attribute(context.Background(), "data-v")
		if err != nil || !ok || got != val {
			t.Fatalf("got %q %v %v, want %q", got, ok, err, val)
		}
	})
}

func TestSite_Visit(t *testing.T) {
	site := NewSite()
	site.Add("index.html", page)
	site.Add("/about.html", `<p>about</p>`)
	assert.Equal(t, []string{"about.html", "index.html"}, site.Names())

	root, err := site.Visit(context.Background(), "/index.html")
	require.NoError(t, err)
	els, err := root.Query(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, els, 2)

	again, err := site.Visit(context.Background(), "index.html")
	require.NoError(t, err)
	assert.Same(t, root, again)

	_, err = site.Visit(context.Background(), "missing.html")
	require.Error(t, err)
}
