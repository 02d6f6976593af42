// Package locate picks the part of a page that holds the article text.
package locate

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Selectors are tried in order: site-specific article containers first, then
// generic semantic ones.
var Selectors = []string{
	".Article",
	".article__data",
	".post-content",
	"#EMAIL_CONTAINER",
	".text",
	"article",
	".content",
	".entry-content",
	".post-body",
}

const (
	// MinSelectorText is the text length a selector match must exceed.
	MinSelectorText = 100
	// MinFallbackText keeps the fallback from picking navigation chrome.
	MinFallbackText = 500

	fallbackSelector = "div, main, section, article"
)

// ArticleRoot returns the element most likely to be the article body, or nil
// when nothing on the page qualifies.
func ArticleRoot(doc *html.Node) *html.Node {
	if doc == nil {
		return nil
	}
	d := goquery.NewDocumentFromNode(doc)

	for _, sel := range Selectors {
		first := d.Find(sel).First()
		if first.Length() == 0 {
			continue
		}
		if textLen(first) > MinSelectorText {
			return first.Get(0)
		}
	}

	var (
		best    *html.Node
		bestLen int
	)
	d.Find(fallbackSelector).Each(func(_ int, s *goquery.Selection) {
		if n := textLen(s); n > bestLen {
			best, bestLen = s.Get(0), n
		}
	})
	if bestLen > MinFallbackText {
		return best
	}
	return nil
}

func textLen(s *goquery.Selection) int {
	return len(strings.TrimSpace(s.Text()))
}
