// Package annotate wraps dictionary words found in article markup with
// colored <u class="enx-word"> spans, and strips them again.
package annotate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/japaniel/enx/pkg/familiarity"
	"github.com/japaniel/enx/pkg/tokenize"
)

const (
	SpanClass    = "enx-word"
	attrWord     = "data-word"
	attrOwned    = "data-enx"
	classPrefix  = "enx-"
	attrFlexFix  = "data-enx-flexfix"
	attrOldStyle = "data-enx-style"
	attrRawTag   = "data-enx-raw"
)

// Dictionary maps words to their records. Keys are folded before use, so
// "GitHub" and "github" name the same entry.
type Dictionary map[string]*familiarity.WordRecord

// excludedTags are never annotated, nor is anything beneath them.
var excludedTags = []string{
	"a", "script", "style", "noscript", "template", "title", "iframe",
	"button", "input", "textarea", "select",
	"xmp", "noembed", "noframes", "plaintext",
}

var (
	excludedSel   = cascadia.MustCompile(strings.Join(excludedTags, ", ") + ", u." + SpanClass)
	spanSel       = cascadia.MustCompile("u." + SpanClass + "[" + attrOwned + "]")
	flexFixedSel  = cascadia.MustCompile("[" + attrFlexFix + "]")
	excludedNames = func() map[string]bool {
		m := make(map[string]bool, len(excludedTags))
		for _, t := range excludedTags {
			m[t] = true
		}
		return m
	}()
)

// ClassFor returns the per-word CSS class. Only [a-z0-9_-] survive from the key
// so the class attribute stays well formed whatever the key contains.
func ClassFor(key string) string {
	var b strings.Builder
	b.WriteString(classPrefix)
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StyleFor returns the inline style of a span for the given record.
func StyleFor(rec *familiarity.WordRecord) string {
	return fmt.Sprintf("text-decoration: %s underline; text-decoration-thickness: 2px;", familiarity.ColorFor(rec))
}

func spanMarkup(surface, key string, rec *familiarity.WordRecord) string {
	return fmt.Sprintf(`<u class="%s %s" %s="%s" style="%s" %s="1">%s</u>`,
		SpanClass, ClassFor(key), attrWord, html.EscapeString(surface), StyleFor(rec), attrOwned, surface)
}

func spanNode(surface, key string, rec *familiarity.WordRecord) *html.Node {
	u := &html.Node{
		Type:     html.ElementNode,
		Data:     "u",
		DataAtom: atom.U,
		Attr: []html.Attribute{
			{Key: "class", Val: SpanClass + " " + ClassFor(key)},
			{Key: attrWord, Val: surface},
			{Key: "style", Val: StyleFor(rec)},
			{Key: attrOwned, Val: "1"},
		},
	}
	u.AppendChild(&html.Node{Type: html.TextNode, Data: surface})
	return u
}

// hasSpanClass reports a <u class="enx-word">, whoever wrote it. Such
// elements are never annotated inside.
func hasSpanClass(tok html.Token) bool {
	if tok.Data != "u" {
		return false
	}
	for _, a := range tok.Attr {
		if a.Key == "class" && hasClass(a.Val, SpanClass) {
			return true
		}
	}
	return false
}

// isSpanToken reports a span generated here; only those are stripped.
func isSpanToken(tok html.Token) bool {
	if !hasSpanClass(tok) {
		return false
	}
	_, ok := attrValue(tok.Attr, attrOwned)
	return ok
}

func hasClass(list, class string) bool {
	for _, c := range strings.Fields(list) {
		if c == class {
			return true
		}
	}
	return false
}

type entry struct {
	key string
	rec *familiarity.WordRecord
}

// entries folds and validates dictionary keys and orders them longest first so
// a longer word claims its text before any shorter word it contains.
func entries(dict Dictionary) []entry {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	byKey := make(map[string]*familiarity.WordRecord, len(keys))
	for _, k := range keys {
		folded := tokenize.Fold(k)
		if !tokenize.IsWord(folded) {
			continue
		}
		rec := dict[k]
		if prev, ok := byKey[folded]; ok && prev != nil && k != folded {
			continue
		}
		byKey[folded] = rec
	}

	out := make([]entry, 0, len(byKey))
	for k, rec := range byKey {
		out = append(out, entry{key: k, rec: rec})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].key) != len(out[j].key) {
			return len(out[i].key) > len(out[j].key)
		}
		return out[i].key < out[j].key
	})
	return out
}
