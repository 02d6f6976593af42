package locate

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func TestArticleRootPrefersSelectorOrder(t *testing.T) {
	long := strings.Repeat("word ", 40)
	doc := parse(t, `<div class="content" id="generic">`+long+`</div>
<div class="post-content" id="post">`+long+`</div>`)

	root := ArticleRoot(doc)
	if root == nil || attr(root, "id") != "post" {
		t.Fatalf("expected .post-content to win, got %v", root)
	}
}

func TestArticleRootSkipsShortMatches(t *testing.T) {
	long := strings.Repeat("sentence ", 20)
	doc := parse(t, `<article id="short">tiny</article><div class="entry-content" id="entry">`+long+`</div>`)

	root := ArticleRoot(doc)
	if root == nil || attr(root, "id") != "entry" {
		t.Fatalf("expected .entry-content, got %v", root)
	}
}

func TestArticleRootFallsBackToLongestContainer(t *testing.T) {
	nav := strings.Repeat("menu ", 10)
	body := strings.Repeat("paragraph text ", 50)
	doc := parse(t, `<nav><div id="nav">`+nav+`</div></nav><main id="main"><section id="sec">`+body+`</section></main>`)

	root := ArticleRoot(doc)
	if root == nil || attr(root, "id") != "main" {
		t.Fatalf("expected longest container, got %v", root)
	}
}

func TestArticleRootNothingQualifies(t *testing.T) {
	doc := parse(t, `<div>short</div><p>`+strings.Repeat("x", 600)+`</p>`)
	if root := ArticleRoot(doc); root != nil {
		t.Fatalf("expected nil, got <%s>", root.Data)
	}
	if ArticleRoot(nil) != nil {
		t.Fatal("nil document must yield nil")
	}
}
